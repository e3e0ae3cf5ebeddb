package governance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/fault"
	"github.com/hivedao/hivedao/pkg/models"
)

// Snapshot is a Backend backed by an external Snapshot-style GraphQL
// voting space. Proposal timestamps on the wire are unix seconds.
type Snapshot struct {
	client   *http.Client
	endpoint string
	spaceID  string
}

// NewSnapshot creates a client for the given GraphQL endpoint and space.
func NewSnapshot(endpoint, spaceID string) *Snapshot {
	return &Snapshot{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: endpoint,
		spaceID:  spaceID,
	}
}

// ── Wire format ──────────────────────────────────────────────

type wireProposal struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Choices     []string  `json:"choices"`
	Start       int64     `json:"start"`
	End         int64     `json:"end"`
	State       string    `json:"state"`
	Author      string    `json:"author"`
	Created     int64     `json:"created"`
	Scores      []float64 `json:"scores"`
	ScoresTotal float64   `json:"scores_total"`
	Votes       int       `json:"votes"`
	Quorum      float64   `json:"quorum"`
}

func (w *wireProposal) toModel() models.Proposal {
	return models.Proposal{
		ID:          w.ID,
		Title:       w.Title,
		Body:        w.Body,
		Choices:     w.Choices,
		Start:       time.Unix(w.Start, 0).UTC(),
		End:         time.Unix(w.End, 0).UTC(),
		Author:      w.Author,
		CreatedAt:   time.Unix(w.Created, 0).UTC(),
		Scores:      w.Scores,
		ScoresTotal: w.ScoresTotal,
		VoteCount:   w.Votes,
		Quorum:      w.Quorum,
	}
}

type wireVote struct {
	ID      string  `json:"id"`
	Voter   string  `json:"voter"`
	Choice  int     `json:"choice"`
	VP      float64 `json:"vp"`
	Created int64   `json:"created"`
}

func (w *wireVote) toModel(proposalID string) models.Vote {
	return models.Vote{
		ID:          w.ID,
		ProposalID:  proposalID,
		Voter:       w.Voter,
		Choice:      w.Choice,
		VotingPower: w.VP,
		CreatedAt:   time.Unix(w.Created, 0).UTC(),
	}
}

// ── GraphQL transport ────────────────────────────────────────

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// graphql posts a query, retrying transport-level failures with
// exponential backoff. GraphQL-level errors are not retried.
func (s *Snapshot) graphql(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("snapshot returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("snapshot returned %d: %s", resp.StatusCode, body))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return &fault.Upstream{Service: "snapshot", Err: err}
	}

	var gql graphqlResponse
	if err := json.Unmarshal(body, &gql); err != nil {
		return &fault.Upstream{Service: "snapshot", Err: err}
	}
	if len(gql.Errors) > 0 {
		msg := gql.Errors[0].Message
		// The ledger reports a duplicate ballot as a GraphQL error.
		if strings.Contains(strings.ToLower(msg), "already voted") {
			return &fault.Conflict{Msg: msg}
		}
		return &fault.Upstream{Service: "snapshot", Err: fmt.Errorf("%s", msg)}
	}
	if out != nil {
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return &fault.Upstream{Service: "snapshot", Err: err}
		}
	}
	return nil
}

// ── Backend implementation ───────────────────────────────────

const proposalsQuery = `
	query Proposals($space: String!, $state: String!, $first: Int!, $skip: Int!) {
		proposals(
			where: { space: $space, state: $state }
			first: $first
			skip: $skip
			orderBy: "created"
			orderDirection: desc
		) {
			id title body choices start end state author created
			scores scores_total votes
		}
	}`

func (s *Snapshot) ListProposals(ctx context.Context, state string, page Page) ([]models.Proposal, error) {
	if state == "all" {
		state = ""
	}
	var data struct {
		Proposals []wireProposal `json:"proposals"`
	}
	err := s.graphql(ctx, proposalsQuery, map[string]interface{}{
		"space": s.spaceID,
		"state": state,
		"first": page.first(),
		"skip":  page.Skip,
	}, &data)
	if err != nil {
		return nil, err
	}

	out := make([]models.Proposal, 0, len(data.Proposals))
	for i := range data.Proposals {
		out = append(out, data.Proposals[i].toModel())
	}
	return out, nil
}

const proposalQuery = `
	query Proposal($id: String!) {
		proposal(id: $id) {
			id title body choices start end state author created
			scores scores_total votes quorum
		}
	}`

func (s *Snapshot) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	var data struct {
		Proposal *wireProposal `json:"proposal"`
	}
	if err := s.graphql(ctx, proposalQuery, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Proposal == nil {
		return nil, &fault.NotFound{Entity: "proposal", Key: id}
	}
	p := data.Proposal.toModel()
	return &p, nil
}

const votesQuery = `
	query Votes($proposal: String!, $first: Int!, $skip: Int!) {
		votes(
			where: { proposal: $proposal }
			first: $first
			skip: $skip
			orderBy: "created"
			orderDirection: desc
		) {
			id voter choice vp created
		}
	}`

func (s *Snapshot) ListVotes(ctx context.Context, proposalID string, page Page) ([]models.Vote, error) {
	var data struct {
		Votes []wireVote `json:"votes"`
	}
	err := s.graphql(ctx, votesQuery, map[string]interface{}{
		"proposal": proposalID,
		"first":    page.first(),
		"skip":     page.Skip,
	}, &data)
	if err != nil {
		return nil, err
	}

	out := make([]models.Vote, 0, len(data.Votes))
	for i := range data.Votes {
		out = append(out, data.Votes[i].toModel(proposalID))
	}
	return out, nil
}

const createProposalMutation = `
	mutation CreateProposal($input: ProposalInput!) {
		createProposal(input: $input) {
			id title body choices start end state author created
			scores scores_total votes quorum
		}
	}`

func (s *Snapshot) CreateProposal(ctx context.Context, in CreateProposalInput) (*models.Proposal, error) {
	var data struct {
		CreateProposal *wireProposal `json:"createProposal"`
	}
	err := s.graphql(ctx, createProposalMutation, map[string]interface{}{
		"input": map[string]interface{}{
			"space":   s.spaceID,
			"type":    "single-choice",
			"title":   in.Title,
			"body":    in.Body,
			"choices": in.Choices,
			"start":   in.Start.Unix(),
			"end":     in.End.Unix(),
			"author":  in.Author,
		},
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.CreateProposal == nil {
		return nil, &fault.Upstream{Service: "snapshot", Err: fmt.Errorf("createProposal returned no proposal")}
	}
	p := data.CreateProposal.toModel()
	log.Info().Str("proposal", p.ID).Str("space", s.spaceID).Msg("Proposal created on snapshot")
	return &p, nil
}

const voteMutation = `
	mutation Vote($input: VoteInput!) {
		vote(input: $input) {
			id voter choice vp created
		}
	}`

func (s *Snapshot) CastVote(ctx context.Context, in CastVoteInput) (*models.Vote, error) {
	var data struct {
		Vote *wireVote `json:"vote"`
	}
	err := s.graphql(ctx, voteMutation, map[string]interface{}{
		"input": map[string]interface{}{
			"space":    s.spaceID,
			"proposal": in.ProposalID,
			"choice":   in.Choice,
			"voter":    in.Voter,
			"vp":       in.VotingPower,
		},
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Vote == nil {
		return nil, &fault.Upstream{Service: "snapshot", Err: fmt.Errorf("vote returned no ballot")}
	}
	v := data.Vote.toModel(in.ProposalID)
	return &v, nil
}

const voterQuery = `
	query Votes($proposal: String!, $voter: String!) {
		votes(where: { proposal: $proposal, voter: $voter }, first: 1) {
			id
		}
	}`

func (s *Snapshot) HasVoted(ctx context.Context, proposalID, voter string) (bool, error) {
	var data struct {
		Votes []wireVote `json:"votes"`
	}
	err := s.graphql(ctx, voterQuery, map[string]interface{}{
		"proposal": proposalID,
		"voter":    voter,
	}, &data)
	if err != nil {
		return false, err
	}
	return len(data.Votes) > 0, nil
}

func (s *Snapshot) Results(ctx context.Context, proposalID string) (*models.ProposalResults, error) {
	p, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return deriveResults(p), nil
}

const spaceQuery = `
	query Space($id: String!) {
		space(id: $id) {
			id name about network symbol members admins
			voting { delay period quorum }
		}
	}`

func (s *Snapshot) SpaceInfo(ctx context.Context) (*models.SpaceInfo, error) {
	var data struct {
		Space *models.SpaceInfo `json:"space"`
	}
	if err := s.graphql(ctx, spaceQuery, map[string]interface{}{"id": s.spaceID}, &data); err != nil {
		return nil, err
	}
	if data.Space == nil {
		return nil, &fault.NotFound{Entity: "space", Key: s.spaceID}
	}
	return data.Space, nil
}
