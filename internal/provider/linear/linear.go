package linear

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/treeflow/treeflow/internal/config"
	"github.com/treeflow/treeflow/internal/provider"
	"github.com/treeflow/treeflow/internal/types"
)

func init() {
	provider.Register("linear", func(ps config.ProviderSettings) (provider.IssueProvider, error) {
		if ps.APIKey == "" {
			return nil, fmt.Errorf("linear provider requires an API key")
		}
		c := NewClient(ps.APIKey, ps.TeamID).
			WithLimiter(provider.NewRateLimiter(ps.RequestsPerMinute))
		if ps.TimeoutSeconds > 0 {
			c.HTTPClient.Timeout = time.Duration(ps.TimeoutSeconds) * time.Second
		}
		return &Provider{client: c}, nil
	})
}

// Provider implements provider.IssueProvider against Linear.
type Provider struct {
	client *Client
}

// NewProvider wraps an existing client; used by tests.
func NewProvider(c *Client) *Provider {
	return &Provider{client: c}
}

func (p *Provider) Name() string { return "linear" }

// issueFields is the selection set shared by every issue query.
const issueFields = `
	id
	identifier
	title
	description
	url
	state { id name type }
	assignee { id name email }
	labels { nodes { id name } }
	team { id key }
	priority
	priorityLabel
	number
	createdAt
	updatedAt`

const getIssueByIDQuery = `query GetIssue($id: String!) {
	issue(id: $id) {` + issueFields + `
	}
}`

const getIssueByIdentifierQuery = `query GetIssueByIdentifier($identifier: String!) {
	issue(filter: { identifier: { eq: $identifier } }) {` + issueFields + `
	}
}`

const listIssuesQuery = `query ListIssues($first: Int!, $filter: IssueFilter) {
	issues(first: $first, filter: $filter) {
		nodes {` + issueFields + `
		}
	}
}`

const createIssueMutation = `mutation CreateIssue($input: IssueCreateInput!) {
	issueCreate(input: $input) {
		success
		issue {` + issueFields + `
		}
	}
}`

const updateIssueMutation = `mutation UpdateIssue($id: String!, $input: IssueUpdateInput!) {
	issueUpdate(id: $id, input: $input) {
		success
		issue {` + issueFields + `
		}
	}
}`

const teamStatesQuery = `query GetTeamStates($teamId: String!) {
	team(id: $teamId) {
		states { nodes { id name type } }
	}
}`

// linearIssue mirrors the GraphQL issue selection.
type linearIssue struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	State       *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"state"`
	Assignee *struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"assignee"`
	Labels struct {
		Nodes []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`
	Team *struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	} `json:"team"`
	Priority      *float64  `json:"priority"`
	PriorityLabel string    `json:"priorityLabel"`
	Number        int       `json:"number"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// isIdentifier distinguishes a human identifier like "DEV-123" from a UUID,
// which carries four or more dashes.
func isIdentifier(id string) bool {
	return strings.Contains(id, "-") && strings.Count(id, "-") < 4
}

func (p *Provider) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	query := getIssueByIDQuery
	variables := map[string]interface{}{"id": id}
	if isIdentifier(id) {
		query = getIssueByIdentifierQuery
		variables = map[string]interface{}{"identifier": id}
	}

	var resp struct {
		Issue *linearIssue `json:"issue"`
	}
	if err := p.client.do(ctx, query, variables, &resp); err != nil {
		return nil, err
	}
	if resp.Issue == nil {
		return nil, &provider.IssueNotFoundError{Provider: "linear", ID: id}
	}
	return transform(resp.Issue), nil
}

func (p *Provider) ListIssues(ctx context.Context, opts provider.ListOptions) ([]*types.Issue, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = provider.DefaultListLimit
	}

	filter := map[string]interface{}{}
	if p.client.TeamID != "" {
		filter["team"] = map[string]interface{}{
			"id": map[string]interface{}{"eq": p.client.TeamID},
		}
	}
	// Linear has no open/closed flag; states of type completed or canceled
	// count as closed, everything else as open.
	switch opts.State {
	case types.IssueOpen:
		filter["state"] = map[string]interface{}{
			"type": map[string]interface{}{"nin": []string{"completed", "canceled"}},
		}
	case types.IssueClosed:
		filter["state"] = map[string]interface{}{
			"type": map[string]interface{}{"in": []string{"completed", "canceled"}},
		}
	}
	if len(opts.Labels) > 0 {
		ors := make([]map[string]interface{}, len(opts.Labels))
		for i, l := range opts.Labels {
			ors[i] = map[string]interface{}{"name": map[string]interface{}{"eq": l}}
		}
		filter["labels"] = map[string]interface{}{
			"some": map[string]interface{}{"or": ors},
		}
	}
	if opts.Assignee != "" {
		filter["assignee"] = map[string]interface{}{
			"name": map[string]interface{}{"eq": opts.Assignee},
		}
	}

	variables := map[string]interface{}{"first": limit}
	if len(filter) > 0 {
		variables["filter"] = filter
	}

	var resp struct {
		Issues struct {
			Nodes []*linearIssue `json:"nodes"`
		} `json:"issues"`
	}
	if err := p.client.do(ctx, listIssuesQuery, variables, &resp); err != nil {
		return nil, err
	}

	issues := make([]*types.Issue, 0, len(resp.Issues.Nodes))
	for _, li := range resp.Issues.Nodes {
		issues = append(issues, transform(li))
	}
	return issues, nil
}

func (p *Provider) CreateIssue(ctx context.Context, draft types.IssueDraft) (*types.Issue, error) {
	if p.client.TeamID == "" {
		return nil, fmt.Errorf("linear team_id is required to create issues")
	}

	input := map[string]interface{}{
		"teamId": p.client.TeamID,
		"title":  draft.Title,
	}
	if draft.Body != "" {
		input["description"] = draft.Body
	}

	var resp struct {
		IssueCreate struct {
			Success bool         `json:"success"`
			Issue   *linearIssue `json:"issue"`
		} `json:"issueCreate"`
	}
	err := p.client.do(ctx, createIssueMutation, map[string]interface{}{"input": input}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.IssueCreate.Success || resp.IssueCreate.Issue == nil {
		return nil, fmt.Errorf("linear refused issue creation")
	}
	return transform(resp.IssueCreate.Issue), nil
}

func (p *Provider) UpdateIssue(ctx context.Context, id string, update types.IssueUpdate) (*types.Issue, error) {
	input := map[string]interface{}{}
	if update.Title != nil {
		input["title"] = *update.Title
	}
	if update.Body != nil {
		input["description"] = *update.Body
	}
	if len(input) == 0 {
		return p.GetIssue(ctx, id)
	}
	return p.mutateIssue(ctx, id, input)
}

// CloseIssue moves the issue into its team's completed workflow state and
// returns the updated record. Linear has no close mutation; the completed
// state id has to be looked up per team.
func (p *Provider) CloseIssue(ctx context.Context, id string) (*types.Issue, error) {
	issue, err := p.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	teamID, _ := issue.Metadata["team_id"].(string)
	if teamID == "" {
		return nil, fmt.Errorf("cannot determine team for issue %s", id)
	}

	var resp struct {
		Team struct {
			States struct {
				Nodes []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
					Type string `json:"type"`
				} `json:"nodes"`
			} `json:"states"`
		} `json:"team"`
	}
	err = p.client.do(ctx, teamStatesQuery, map[string]interface{}{"teamId": teamID}, &resp)
	if err != nil {
		return nil, err
	}

	stateID := ""
	for _, s := range resp.Team.States.Nodes {
		if s.Type == "completed" {
			stateID = s.ID
			break
		}
	}
	if stateID == "" {
		return nil, fmt.Errorf("no completed state found for team %s", teamID)
	}

	return p.mutateIssue(ctx, issue.ID, map[string]interface{}{"stateId": stateID})
}

func (p *Provider) mutateIssue(ctx context.Context, id string, input map[string]interface{}) (*types.Issue, error) {
	var resp struct {
		IssueUpdate struct {
			Success bool         `json:"success"`
			Issue   *linearIssue `json:"issue"`
		} `json:"issueUpdate"`
	}
	variables := map[string]interface{}{"id": id, "input": input}
	if err := p.client.do(ctx, updateIssueMutation, variables, &resp); err != nil {
		return nil, err
	}
	if !resp.IssueUpdate.Success || resp.IssueUpdate.Issue == nil {
		return nil, fmt.Errorf("linear refused issue update")
	}
	return transform(resp.IssueUpdate.Issue), nil
}

// transform maps a Linear issue onto the provider-neutral model. Tracker
// specifics survive under Metadata so nothing is lost in normalization.
func transform(li *linearIssue) *types.Issue {
	state := types.IssueOpen
	metadata := map[string]interface{}{
		"linear_identifier": li.Identifier,
	}
	if li.State != nil {
		if li.State.Type == "completed" || li.State.Type == "canceled" {
			state = types.IssueClosed
		}
		metadata["state_name"] = li.State.Name
		metadata["state_type"] = li.State.Type
	}
	if li.Team != nil {
		metadata["team_id"] = li.Team.ID
		metadata["team_key"] = li.Team.Key
	}
	if li.Priority != nil {
		metadata["priority"] = *li.Priority
		metadata["priority_label"] = li.PriorityLabel
	}

	var assignees []string
	if li.Assignee != nil {
		name := li.Assignee.Name
		if name == "" {
			name = li.Assignee.Email
		}
		if name != "" {
			assignees = append(assignees, name)
		}
	}

	var labels []string
	for _, l := range li.Labels.Nodes {
		labels = append(labels, l.Name)
	}

	number := li.Number
	if idx := strings.LastIndex(li.Identifier, "-"); idx >= 0 {
		if n, err := strconv.Atoi(li.Identifier[idx+1:]); err == nil {
			number = n
		}
	}

	return &types.Issue{
		ID:        li.ID,
		Number:    number,
		Title:     li.Title,
		Body:      li.Description,
		State:     state,
		Labels:    labels,
		Assignees: assignees,
		URL:       li.URL,
		CreatedAt: li.CreatedAt,
		UpdatedAt: li.UpdatedAt,
		Metadata:  metadata,
	}
}
