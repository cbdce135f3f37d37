package main

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"sutradharx/escrow"
	"sutradharx/transaction"
)

type recordingDeployer struct {
	drafts []escrow.Draft
	err    error
}

func (d *recordingDeployer) Deploy(_ context.Context, draft escrow.Draft) error {
	d.drafts = append(d.drafts, draft)
	return d.err
}

type failingEscrowRepo struct{}

func (failingEscrowRepo) List(context.Context, escrow.ListFilters) ([]escrow.Record, int, error) {
	return nil, 0, errors.New("relation escrows does not exist")
}

func newEscrowServer(t *testing.T, deployer escrow.Deployer, repo escrow.Repository) *Server {
	t.Helper()
	return &Server{
		walletService: newWalletService(t),
		escrowService: escrow.NewService(repo, deployer, escrow.NewStore(time.Hour)),
	}
}

const (
	partiesBody = `{"values":{"payerName":"Rohan","payerUpi":"rohan@upi","payerWallet":"0x1234567890ab","payeeName":"Priya","payeeUpi":"priya@okbank","payeeWallet":"0xabcdef123456"}}`
	termsBody   = `{"values":{"amount":"5000","terms":"Deliver 100 widgets by June 1."}}`
)

func TestWizardHappyPath(t *testing.T) {
	deployer := &recordingDeployer{}
	handler := newEscrowServer(t, deployer, nil).Handler()
	token, _ := connect(t, handler, 20)

	rec := do(t, handler, http.MethodPost, "/api/escrows/wizards", token, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	var wiz wizardResponse
	decode(t, rec, &wiz)
	if wiz.ID == "" || wiz.Step != 0 || wiz.StepName != "Parties" {
		t.Fatalf("unexpected wizard: %+v", wiz)
	}
	base := "/api/escrows/wizards/" + wiz.ID

	steps := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPut, base + "/fields", partiesBody, http.StatusOK},
		{http.MethodPost, base + "/next", "", http.StatusOK},
		{http.MethodPut, base + "/fields", termsBody, http.StatusOK},
		{http.MethodPost, base + "/next", "", http.StatusOK},
	}
	for _, s := range steps {
		rec = do(t, handler, s.method, s.path, token, s.body)
		if rec.Code != s.want {
			t.Fatalf("%s %s: expected %d, got %d: %s", s.method, s.path, s.want, rec.Code, rec.Body.String())
		}
	}
	decode(t, rec, &wiz)
	if wiz.Step != 2 {
		t.Fatalf("expected review step, got %d", wiz.Step)
	}

	rec = do(t, handler, http.MethodGet, base+"/review", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("review: expected 200, got %d", rec.Code)
	}
	var review reviewResponse
	decode(t, rec, &review)
	if review.AmountDisplay != "₹5,000" || review.Payee.Name != "Priya" {
		t.Fatalf("unexpected review: %+v", review)
	}

	rec = do(t, handler, http.MethodPost, base+"/submit", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var submitted submitResponse
	decode(t, rec, &submitted)
	if submitted.Notice != escrow.DeploymentNotice || submitted.Draft.Amount != 5000 {
		t.Fatalf("unexpected submit payload: %+v", submitted)
	}
	if len(deployer.drafts) != 1 || deployer.drafts[0].Payer.UPIID != "rohan@upi" {
		t.Fatalf("expected exactly one deployment, got %+v", deployer.drafts)
	}

	rec = do(t, handler, http.MethodGet, base, token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected submitted wizard to be gone, got %d", rec.Code)
	}
}

func TestWizardNextReportsFirstInvalidField(t *testing.T) {
	handler := newEscrowServer(t, &recordingDeployer{}, nil).Handler()
	token, _ := connect(t, handler, 21)

	rec := do(t, handler, http.MethodPost, "/api/escrows/wizards", token, "")
	var wiz wizardResponse
	decode(t, rec, &wiz)
	base := "/api/escrows/wizards/" + wiz.ID

	do(t, handler, http.MethodPut, base+"/fields", token, `{"values":{"payerName":"R","payerUpi":"rohan@upi"}}`)
	rec = do(t, handler, http.MethodPost, base+"/next", token, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var payload struct {
		Fields       map[string]string `json:"fields"`
		FirstInvalid string            `json:"firstInvalid"`
		Wizard       wizardResponse    `json:"wizard"`
	}
	decode(t, rec, &payload)
	if payload.FirstInvalid != "payerName" {
		t.Fatalf("expected payerName to be focused, got %q", payload.FirstInvalid)
	}
	if payload.Fields["payerName"] != "Name must be at least 2 characters." {
		t.Fatalf("unexpected messages: %+v", payload.Fields)
	}
	if _, ok := payload.Fields["payerUpi"]; ok {
		t.Fatalf("valid field reported as invalid: %+v", payload.Fields)
	}
	if payload.Wizard.Step != 0 || payload.Wizard.Values["payerName"] != "R" {
		t.Fatalf("wizard moved or lost input: %+v", payload.Wizard)
	}
}

func TestWizardErrors(t *testing.T) {
	handler := newEscrowServer(t, &recordingDeployer{}, nil).Handler()
	token, _ := connect(t, handler, 22)
	otherToken, _ := connect(t, handler, 23)

	rec := do(t, handler, http.MethodPost, "/api/escrows/wizards", token, "")
	var wiz wizardResponse
	decode(t, rec, &wiz)
	base := "/api/escrows/wizards/" + wiz.ID

	cases := []struct {
		name                      string
		method, path, token, body string
		want                      int
	}{
		{"foreign wallet", http.MethodGet, base, otherToken, "", http.StatusNotFound},
		{"unknown field", http.MethodPut, base + "/fields", token, `{"values":{"colour":"red"}}`, http.StatusBadRequest},
		{"submit before review", http.MethodPost, base + "/submit", token, "", http.StatusConflict},
		{"review before review step", http.MethodGet, base + "/review", token, "", http.StatusConflict},
		{"unknown action", http.MethodPost, base + "/launch", token, "", http.StatusNotFound},
		{"wrong method", http.MethodGet, base + "/next", token, "", http.StatusMethodNotAllowed},
		{"missing id", http.MethodGet, "/api/escrows/wizards/", token, "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, handler, tc.method, tc.path, tc.token, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec = do(t, handler, http.MethodDelete, base, token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("discard: expected 204, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodGet, base, token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected discarded wizard to be gone, got %d", rec.Code)
	}
}

func TestWizardDeployFailure(t *testing.T) {
	deployer := &recordingDeployer{err: errors.New("node unreachable")}
	handler := newEscrowServer(t, deployer, nil).Handler()
	token, _ := connect(t, handler, 24)

	rec := do(t, handler, http.MethodPost, "/api/escrows/wizards", token, "")
	var wiz wizardResponse
	decode(t, rec, &wiz)
	base := "/api/escrows/wizards/" + wiz.ID

	do(t, handler, http.MethodPut, base+"/fields", token, partiesBody)
	do(t, handler, http.MethodPost, base+"/next", token, "")
	do(t, handler, http.MethodPut, base+"/fields", token, termsBody)
	do(t, handler, http.MethodPost, base+"/next", token, "")

	rec = do(t, handler, http.MethodPost, base+"/submit", token, "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListEscrows(t *testing.T) {
	handler := newEscrowServer(t, nil, nil).Handler()
	token, addr := connect(t, handler, 25)

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := escrow.StaticRepository{Records: []escrow.StaticRecord{
		{
			Record: escrow.Record{
				ID: "ESC-001", Amount: 5000, Status: escrow.StatusActive, CreatedAt: created,
				Payer: escrow.Counterparty{Name: "Rohan", UPI: "rohan@upi"},
				Payee: escrow.Counterparty{Name: "Priya", UPI: "priya@okbank"},
			},
			PayerWallet: addr,
		},
		{
			Record:      escrow.Record{ID: "ESC-002", Amount: 10, Status: escrow.StatusCompleted, CreatedAt: created},
			PayerWallet: "0xsomeoneelse",
		},
	}}
	handler = newEscrowServer(t, nil, repo).Handler()
	token, _ = connect(t, handler, 25)

	rec := do(t, handler, http.MethodGet, "/api/escrows?page=1&pageSize=10", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload listResponse[escrowResponse]
	decode(t, rec, &payload)
	if payload.Total != 1 || len(payload.Items) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	item := payload.Items[0]
	if item.ID != "ESC-001" || item.AmountDisplay != "₹5,000" || item.CreatedAt != created.Format(time.RFC3339) {
		t.Fatalf("unexpected item: %+v", item)
	}

	handler = newEscrowServer(t, nil, failingEscrowRepo{}).Handler()
	token, _ = connect(t, handler, 25)
	rec = do(t, handler, http.MethodGet, "/api/escrows", token, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestListTransactions(t *testing.T) {
	server := &Server{walletService: newWalletService(t)}
	handler := server.Handler()
	token, addr := connect(t, handler, 26)

	server.transactionService = transaction.NewService(transaction.StaticRepository{Records: []transaction.StaticRecord{
		{
			Record:  transaction.Record{ID: "TXN-1", EscrowID: "ESC-001", Amount: 250, Status: transaction.StatusCompleted, Type: transaction.TypeDeposit},
			Wallets: []string{addr},
		},
	}})

	rec := do(t, handler, http.MethodGet, "/api/transactions", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload listResponse[transactionResponse]
	decode(t, rec, &payload)
	if payload.Total != 1 || payload.Items[0].Type != "Deposit" || payload.Items[0].AmountDisplay != "₹250" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	rec = do(t, handler, http.MethodPost, "/api/transactions", token, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
