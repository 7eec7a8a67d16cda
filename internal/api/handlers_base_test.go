// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/models"
)

// mockStore implements VisitorStore with overridable behavior per
// test. Unset functions fall back to benign defaults.
type mockStore struct {
	createFn  func(ctx context.Context, v *models.VisitorRecord) error
	getByID   func(ctx context.Context, id string) (*models.VisitorRecord, error)
	getByTok  func(ctx context.Context, token string) (*models.VisitorRecord, error)
	listFn    func(ctx context.Context, status models.VisitorStatus) ([]models.VisitorRecord, error)
	decideFn  func(ctx context.Context, id string, status models.VisitorStatus, decidedBy string, at time.Time) (bool, error)
	setPassFn func(ctx context.Context, id, url string) error
	expireFn  func(ctx context.Context, id string) (bool, error)
	statsFn   func(ctx context.Context) (*models.VisitorStats, error)
	pingErr   error

	created []*models.VisitorRecord
}

func (m *mockStore) CreateVisitor(ctx context.Context, v *models.VisitorRecord) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, v); err != nil {
			return err
		}
	}
	clone := *v
	m.created = append(m.created, &clone)
	return nil
}

func (m *mockStore) GetVisitorByID(ctx context.Context, id string) (*models.VisitorRecord, error) {
	if m.getByID != nil {
		return m.getByID(ctx, id)
	}
	return nil, nil
}

func (m *mockStore) GetVisitorByToken(ctx context.Context, token string) (*models.VisitorRecord, error) {
	if m.getByTok != nil {
		return m.getByTok(ctx, token)
	}
	return nil, nil
}

func (m *mockStore) ListVisitors(ctx context.Context, status models.VisitorStatus) ([]models.VisitorRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, status)
	}
	return []models.VisitorRecord{}, nil
}

func (m *mockStore) DecideVisitor(ctx context.Context, id string, status models.VisitorStatus, decidedBy string, at time.Time) (bool, error) {
	if m.decideFn != nil {
		return m.decideFn(ctx, id, status, decidedBy, at)
	}
	return true, nil
}

func (m *mockStore) SetPassURL(ctx context.Context, id, url string) error {
	if m.setPassFn != nil {
		return m.setPassFn(ctx, id, url)
	}
	return nil
}

func (m *mockStore) ExpireVisitor(ctx context.Context, id string) (bool, error) {
	if m.expireFn != nil {
		return m.expireFn(ctx, id)
	}
	return true, nil
}

func (m *mockStore) GetVisitorStats(ctx context.Context) (*models.VisitorStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &models.VisitorStats{}, nil
}

func (m *mockStore) Ping(_ context.Context) error { return m.pingErr }

// mockObjects records uploads and returns deterministic URLs.
type mockObjects struct {
	uploadErr error
	uploads   []mockUpload
}

type mockUpload struct {
	folder      string
	fileName    string
	contentType string
	size        int
}

func (m *mockObjects) Upload(_ context.Context, folder, fileName string, data []byte, contentType string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.uploads = append(m.uploads, mockUpload{folder: folder, fileName: fileName, contentType: contentType, size: len(data)})
	return "https://cdn.example.com/" + folder + "/" + fileName, nil
}

// mockNotifier records sends.
type mockNotifier struct {
	requestErr   error
	approvalErr  error
	rejectionErr error

	approvalRequests []string
	approvals        []string
	rejections       []string
	lastApprovalPDF  []byte
}

func (m *mockNotifier) SendApprovalRequest(_ context.Context, v *models.VisitorRecord) error {
	if m.requestErr != nil {
		return m.requestErr
	}
	m.approvalRequests = append(m.approvalRequests, v.ID)
	return nil
}

func (m *mockNotifier) SendApproval(_ context.Context, v *models.VisitorRecord, pdf []byte) error {
	if m.approvalErr != nil {
		return m.approvalErr
	}
	m.approvals = append(m.approvals, v.ID)
	m.lastApprovalPDF = pdf
	return nil
}

func (m *mockNotifier) SendRejection(_ context.Context, v *models.VisitorRecord) error {
	if m.rejectionErr != nil {
		return m.rejectionErr
	}
	m.rejections = append(m.rejections, v.ID)
	return nil
}

// mockPasses returns a fixed PDF and remembers the state of the
// context it was generated under.
type mockPasses struct {
	err       error
	calls     int
	genCtxErr error
}

func (m *mockPasses) Generate(ctx context.Context, _ *models.VisitorRecord) ([]byte, error) {
	m.calls++
	m.genCtxErr = ctx.Err()
	if m.err != nil {
		return nil, m.err
	}
	return []byte("%PDF-1.4 test"), nil
}

// testEnv bundles handler dependencies with a routed server.
type testEnv struct {
	store    *mockStore
	objects  *mockObjects
	notifier *mockNotifier
	passes   *mockPasses
	router   http.Handler
}

func newTestEnv() *testEnv {
	return newTestEnvWith(nil)
}

func newTestEnvWith(mutate func(*config.Config)) *testEnv {
	env := &testEnv{
		store:    &mockStore{},
		objects:  &mockObjects{},
		notifier: &mockNotifier{},
		passes:   &mockPasses{},
	}

	cfg := &config.Config{
		Storage: config.StorageConfig{
			PhotoPrefix: "visitor-photos",
			PassPrefix:  "visitor-passes",
		},
		Security: config.SecurityConfig{
			AdminUsername:     "admin",
			AdminPassword:     "s3cret",
			ApprovalTokenTTL:  24 * time.Hour,
			VisitorCodePrefix: "NK",
			RateLimitDisabled: true,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	handler := NewHandler(env.store, env.objects, env.notifier, env.passes, cfg)
	env.router = NewRouter(handler, NewChiMiddleware(&cfg.Security)).Setup()
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) *models.APIResponse {
	t.Helper()

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
	return &resp
}

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func validRegisterRequest() models.RegisterVisitorRequest {
	photo := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not-a-real-png"))
	return models.RegisterVisitorRequest{
		Name:        "Ravi Kumar",
		Email:       "ravi@example.com",
		Mobile:      "9876543210",
		NationalID:  "1234-5678-9012",
		Purpose:     "Network maintenance",
		ToMeet:      "Anita Sharma",
		PersonType:  models.PersonTypeVendor,
		CompanyName: "Acme Networks",
		GateNumber:  1,
		HostEmail:   "anita@nktu.example",
		Photo:       photo,
	}
}

func pendingVisitor() *models.VisitorRecord {
	return &models.VisitorRecord{
		ID:             "v-1",
		VisitorCode:    "NK-2026-0042",
		Name:           "Ravi Kumar",
		Email:          "ravi@example.com",
		Mobile:         "9876543210",
		HostEmail:      "anita@nktu.example",
		Status:         models.StatusPending,
		ApprovalToken:  "deadbeefdeadbeefdeadbeefdeadbeef",
		TokenExpiresAt: time.Now().Add(time.Hour),
		CreatedAt:      time.Now().Add(-time.Minute),
	}
}
