package pass

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObservePassRequest(op string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingObserver) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	observer := &recordingObserver{}
	client := NewClient(Config{BaseURL: server.URL + "/", APIKey: "secret-key"}, WithObserver(observer))
	return client, observer
}

func TestGetProposalBuildsURLAndParses(t *testing.T) {
	var gotPath string
	client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{
			"Proposal_ID": 300001,
			"Title": "Nanoparticles",
			"Proposal_Type_ID": 7,
			"Proposal_Type_Description": "General User",
			"PI": {"BNL_ID": "123", "First_Name": "Ada", "Last_Name": "Lovelace", "Email": "ada@example.com"},
			"Experimenters": [{"BNL_ID": 456, "First_Name": "Grace", "Last_Name": "Hopper"}],
			"Resources": [{"ID": 300002, "Code": "CHX"}]
		}`))
	})

	proposal, err := client.GetProposal(context.Background(), "NSLS-II", "300001")
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if gotPath != "/Proposal/GetProposal/secret-key/NSLS-II/300001" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if proposal.ProposalID != "300001" || proposal.ProposalTypeID != "7" {
		t.Errorf("ids not normalised: %+v", proposal)
	}
	if proposal.PI == nil || proposal.PI.BNLID != "123" {
		t.Errorf("unexpected PI: %+v", proposal.PI)
	}
	if proposal.Experimenters[0].BNLID != "456" {
		t.Errorf("numeric BNL id not decoded: %+v", proposal.Experimenters[0])
	}
	if len(observer.calls) != 1 || observer.calls[0] != "GetProposal" {
		t.Errorf("expected one observed call, got %v", observer.calls)
	}
}

func TestGetProposalNonSuccessIsFetchError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.GetProposal(context.Background(), "NSLS-II", "1")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T %v", err, err)
	}
	if fetchErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", fetchErr.StatusCode)
	}
	if !strings.HasSuffix(fetchErr.URL, "/Proposal/GetProposal/***/NSLS-II/1") || strings.Contains(fetchErr.URL, "secret-key") {
		t.Errorf("expected redacted request url, got %q", fetchErr.URL)
	}
}

func TestGetProposalNullBodyIsValidationError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})

	_, err := client.GetProposal(context.Background(), "NSLS-II", "1")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T %v", err, err)
	}
}

func TestTransportErrorRedactsKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKey: "secret-key", Timeout: time.Second})
	_, err := client.GetCycles(context.Background(), "NSLS-II")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T %v", err, err)
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Fatalf("api key leaked into error: %v", err)
	}
}

func TestGetProposalsByTypeURL(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[{"Proposal_ID": 1}, {"Proposal_ID": "2"}]`))
	})

	proposals, err := client.GetProposalsByType(context.Background(), "NSLS-II", "2024", CommissioningProposalTypeID)
	if err != nil {
		t.Fatalf("GetProposalsByType: %v", err)
	}
	if gotPath != "/Proposal/GetProposalsByType/secret-key/NSLS-II/2024/300005/NULL" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if len(proposals) != 2 || proposals[1].ProposalID != "2" {
		t.Errorf("unexpected proposals: %+v", proposals)
	}
}

func TestGetProposalsAllocatedByCycle(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`[{"Proposal_ID": 300001}, {"Proposal_ID": 300002}]`))
	})

	allocated, err := client.GetProposalsAllocatedByCycle(context.Background(), "NSLS-II", "2024-1")
	if err != nil {
		t.Fatalf("GetProposalsAllocatedByCycle: %v", err)
	}
	if gotPath != "/Proposal/GetProposalsAllocatedByCycle/secret-key/NSLS-II/2024-1" {
		t.Errorf("unexpected path %s", gotPath)
	}
	ids := ProposalIDs(allocated)
	if strings.Join(ids, ",") != "300001,300002" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestGetProposalsByPersonURL(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`null`))
	})

	proposals, err := client.GetProposalsByPerson(context.Background(), "NSLS-II", "123")
	if err != nil {
		t.Fatalf("GetProposalsByPerson: %v", err)
	}
	if gotPath != "/Proposal/GetProposalsByPerson/secret-key/NSLS-II/null/null/123/null" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if proposals == nil || len(proposals) != 0 {
		t.Errorf("expected empty non-nil list, got %v", proposals)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	client.limiter.SetLimit(0.001)
	client.limiter.SetBurst(1)

	ctx := context.Background()
	if _, err := client.GetProposalTypes(ctx, "NSLS-II"); err != nil {
		t.Fatalf("first call should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := client.GetProposalTypes(ctx, "NSLS-II")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError from limiter wait, got %v", err)
	}
}
