package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"ministry/internal/adapters/http/middleware"
	"ministry/internal/adapters/http/perf"
	"ministry/internal/adapters/schedapi"
	contactStore "ministry/internal/adapters/storage/contact"
	credentialStore "ministry/internal/adapters/storage/credential"
	eventStore "ministry/internal/adapters/storage/event"
	galleryStore "ministry/internal/adapters/storage/gallery"
	outboxStore "ministry/internal/adapters/storage/outbox"
	programStore "ministry/internal/adapters/storage/program"
	resourceStore "ministry/internal/adapters/storage/resource"
	"ministry/internal/adapters/storage/storagetest"
	"ministry/internal/application/orchestrators"
	"ministry/internal/application/schedulepage"
	domainCredential "ministry/internal/domain/credential"
	domainResource "ministry/internal/domain/resource"
	"ministry/internal/domain/schedule"
)

var webTestTime = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

// fakeAPI stands in for the external scheduling and auth service.
type fakeAPI struct {
	mu         sync.Mutex
	slots      []schedule.Slot
	availErr   error
	availCalls int
	bookErr    error
	booked     []schedule.BookingRequest
	profile    schedapi.Profile
	profileErr error
	tokens     []string
	login      schedapi.LoginResult
	loginErr   error
}

func (f *fakeAPI) Availability(_ context.Context, _ schedule.Date) ([]schedule.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availCalls++
	return f.slots, f.availErr
}

func (f *fakeAPI) Book(_ context.Context, req schedule.BookingRequest) (schedule.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return schedule.Booking{}, f.bookErr
	}
	f.booked = append(f.booked, req)
	return schedule.Booking{ID: "bk-1", Date: req.Date, Time: req.Time}, nil
}

func (f *fakeAPI) StudentProfile(_ context.Context, token string) (schedapi.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f.profile, f.profileErr
}

func (f *fakeAPI) StudentLogin(_ context.Context, _, _ string) (schedapi.LoginResult, error) {
	return f.login, f.loginErr
}

type webEnv struct {
	api         *fakeAPI
	contacts    *contactStore.SQLiteStore
	outbox      *outboxStore.SQLiteStore
	credentials *credentialStore.SQLiteStore
	session     *middleware.Session
}

// newWebEnv wires the package globals to seeded in-memory stores and a fake API.
func newWebEnv(t *testing.T) *webEnv {
	t.Helper()
	db := storagetest.Open(t)
	sealer, err := credentialStore.NewSealer([]byte(strings.Repeat("k", 32)))
	if err != nil {
		t.Fatal(err)
	}
	env := &webEnv{
		api: &fakeAPI{slots: []schedule.Slot{
			{Time: "09:00", Label: "9:00 AM", Available: true},
			{Time: "10:00", Label: "10:00 AM", Available: false},
		}},
		contacts:    contactStore.NewSQLiteStore(db),
		outbox:      outboxStore.NewSQLiteStore(db),
		credentials: credentialStore.NewSQLiteStore(db, sealer),
		session:     middleware.NewTestSession(strings.Repeat("d", 64)),
	}
	s := &Stores{
		EventStore:      eventStore.NewSQLiteStore(db),
		ProgramStore:    programStore.NewSQLiteStore(db),
		ResourceStore:   resourceStore.NewSQLiteStore(db),
		GallerySource:   galleryStore.NewSQLiteStore(db),
		ContactStore:    env.contacts,
		OutboxStore:     env.outbox,
		CredentialStore: env.credentials,
		DB:              db,
	}

	prevNow := timeNow
	timeNow = func() time.Time { return webTestTime }
	t.Cleanup(func() { timeNow = prevNow })

	err = orchestrators.ExecuteSeedContent(context.Background(), orchestrators.SeedContentDeps{
		EventStore:    s.EventStore,
		ProgramStore:  s.ProgramStore,
		ResourceStore: s.ResourceStore,
		GalleryStore:  galleryStore.NewSQLiteStore(db),
		Now:           timeNow,
	})
	if err != nil {
		t.Fatal(err)
	}

	stores = s
	api = env.api
	perfCollector = perf.NewCollector(100)
	contactInbox = "office@example.org"
	siteLocation = time.UTC
	horizonDays = schedulepage.DefaultHorizonDays
	confirmSection = schedulepage.NewConfirmSection(env.api, env.outbox, generateID, timeNow)
	return env
}

func (e *webEnv) request(method, target string, body string, contentType string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Accept", "text/html")
	return req.WithContext(middleware.ContextWithVisitor(req.Context(), e.session))
}

func (e *webEnv) form(target string, values url.Values) *http.Request {
	return e.request("POST", target, values.Encode(), "application/x-www-form-urlencoded")
}

func (e *webEnv) jsonReq(target string, body string) *http.Request {
	req := e.request("POST", target, body, "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func (e *webEnv) persistent() credentialStore.Storage {
	return e.credentials.ForDevice(e.session.DeviceID)
}

// --- Site pages ---

func TestHandleHome_ListsSeededContent(t *testing.T) {
	env := newWebEnv(t)
	rec := httptest.NewRecorder()
	handleHome(rec, env.request("GET", "/", "", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	for _, want := range []string{"Night of Worship", "Foundations of Worship"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("home page missing %q", want)
		}
	}
}

func TestHandleEvents_JSON(t *testing.T) {
	newWebEnv(t)
	req := httptest.NewRequest("GET", "/events", nil)
	rec := httptest.NewRecorder()
	handleEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var page struct{ Total int }
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 {
		t.Errorf("total = %d, want 3", page.Total)
	}
}

func TestHandleResource(t *testing.T) {
	env := newWebEnv(t)
	err := stores.ResourceStore.Save(context.Background(), domainResource.Resource{
		ID:          "r-xss",
		Slug:        "raw-html",
		Title:       "Raw HTML",
		Category:    domainResource.CategoryArticle,
		Body:        "Hello <script>alert(1)</script> **bold**",
		PublishedAt: webTestTime,
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		slug       string
		wantStatus int
		want       string
		notWant    string
	}{
		{name: "seeded markdown", slug: "preparing-a-setlist", wantStatus: http.StatusOK, want: "<h2>Start with the theme</h2>"},
		{name: "raw html escaped", slug: "raw-html", wantStatus: http.StatusOK, want: "<strong>bold</strong>", notWant: "<script>alert(1)</script>"},
		{name: "unknown slug", slug: "missing", wantStatus: http.StatusNotFound},
		{name: "malformed slug", slug: "Bad_Slug", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := env.request("GET", "/resources/"+tt.slug, "", "")
			req.SetPathValue("slug", tt.slug)
			rec := httptest.NewRecorder()
			handleResource(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("got %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.want != "" && !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
			if tt.notWant != "" && strings.Contains(rec.Body.String(), tt.notWant) {
				t.Errorf("body contains %q", tt.notWant)
			}
		})
	}
}

func TestHandleContactSubmit_Form(t *testing.T) {
	env := newWebEnv(t)
	rec := httptest.NewRecorder()
	handleContactSubmit(rec, env.form("/contact", url.Values{
		"Name":    {"Ruth"},
		"Email":   {"ruth@example.com"},
		"Subject": {"Lessons"},
		"Message": {"Do you teach bass?"},
	}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("got %d, want 303: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/contact?sent=1" {
		t.Errorf("Location = %q", loc)
	}
	msgs, err := env.contacts.ListRecent(context.Background(), 10)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("stored messages = %d, %v", len(msgs), err)
	}
	counts, err := env.outbox.CountByStatus(context.Background())
	if err != nil || counts["pending"] != 1 {
		t.Fatalf("queued emails = %v, %v", counts, err)
	}
}

func TestHandleContactSubmit_Invalid(t *testing.T) {
	env := newWebEnv(t)
	rec := httptest.NewRecorder()
	handleContactSubmit(rec, env.form("/contact", url.Values{
		"Name":    {"Ruth"},
		"Email":   {"not-an-email"},
		"Message": {"Hi"},
	}))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "a valid email address is required") {
		t.Error("validation message not shown")
	}
	if !strings.Contains(rec.Body.String(), `value="Ruth"`) {
		t.Error("form values not preserved")
	}
	msgs, _ := env.contacts.ListRecent(context.Background(), 10)
	if len(msgs) != 0 {
		t.Errorf("invalid message was stored")
	}
}

func TestHandleContactSubmit_JSON(t *testing.T) {
	env := newWebEnv(t)
	rec := httptest.NewRecorder()
	handleContactSubmit(rec, env.jsonReq("/contact", `{"name":"Ruth","email":"ruth@example.com","message":"Hello"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handleContactSubmit(rec, env.jsonReq("/contact", `{"name":"Ruth","unknown":true}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field: got %d, want 400", rec.Code)
	}
}

// --- Scheduling flow ---

func composerState(t *testing.T, env *webEnv) schedule.State {
	t.Helper()
	c, ok := env.session.Attr("schedule", func() any { return nil }).(*schedulepage.Composer)
	if !ok {
		t.Fatal("no composer stored on the session")
	}
	return c.Snapshot()
}

func TestScheduleFlow_SelectAndConfirm(t *testing.T) {
	env := newWebEnv(t)

	rec := httptest.NewRecorder()
	handleScheduleDate(rec, env.form("/schedule/date", url.Values{"date": {"2026-10-22"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("date: got %d, want 303: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/schedule?month=2026-10" {
		t.Errorf("Location = %q", loc)
	}

	rec = httptest.NewRecorder()
	handleScheduleTime(rec, env.form("/schedule/time", url.Values{"time": {"09:00"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("time: got %d, want 303", rec.Code)
	}

	rec = httptest.NewRecorder()
	handleSchedule(rec, env.request("GET", "/schedule", "", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("page: got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Booking 2026-10-22 at 09:00") {
		t.Error("selection summary not rendered")
	}

	rec = httptest.NewRecorder()
	handleScheduleConfirm(rec, env.jsonReq("/schedule/confirm", `{"name":"Ana","email":"ana@example.com"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("confirm: got %d, want 201: %s", rec.Code, rec.Body.String())
	}

	state := composerState(t, env)
	if state.Refresh != 1 {
		t.Errorf("Refresh = %d, want 1", state.Refresh)
	}
	if len(env.api.booked) != 1 || env.api.booked[0].Time != "09:00" {
		t.Errorf("booked = %+v", env.api.booked)
	}
	counts, _ := env.outbox.CountByStatus(context.Background())
	if counts["pending"] != 1 {
		t.Errorf("confirmation emails queued = %v, want 1 pending", counts)
	}
}

func TestScheduleDate_ResetsTime(t *testing.T) {
	env := newWebEnv(t)
	for _, step := range []struct {
		path string
		vals url.Values
	}{
		{"/schedule/date", url.Values{"date": {"2026-10-22"}}},
		{"/schedule/time", url.Values{"time": {"09:00"}}},
		{"/schedule/date", url.Values{"date": {"2026-10-23"}}},
	} {
		rec := httptest.NewRecorder()
		if step.path == "/schedule/date" {
			handleScheduleDate(rec, env.form(step.path, step.vals))
		} else {
			handleScheduleTime(rec, env.form(step.path, step.vals))
		}
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("%s: got %d", step.path, rec.Code)
		}
	}

	state := composerState(t, env)
	if state.Date.String() != "2026-10-23" || state.Time != "" {
		t.Errorf("state = %+v, want date 2026-10-23 and no time", state)
	}
}

func TestScheduleDate_RejectsUnbookable(t *testing.T) {
	tests := []struct {
		name string
		date string
	}{
		{name: "past", date: "2026-10-18"},
		{name: "beyond horizon", date: "2027-03-01"},
		{name: "malformed", date: "22/10/2026"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newWebEnv(t)
			rec := httptest.NewRecorder()
			handleScheduleDate(rec, env.jsonReq("/schedule/date", `{"date":"`+tt.date+`"}`))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("got %d, want 422", rec.Code)
			}
		})
	}
}

func TestScheduleTime_RequiresDate(t *testing.T) {
	env := newWebEnv(t)
	rec := httptest.NewRecorder()
	handleScheduleTime(rec, env.jsonReq("/schedule/time", `{"time":"09:00"}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("got %d, want 422", rec.Code)
	}
}

func TestScheduleConfirm_SlotTaken(t *testing.T) {
	env := newWebEnv(t)
	env.api.bookErr = &schedapi.Error{
		Kind:   schedapi.KindBusiness,
		Op:     "POST /schedule/book",
		Status: http.StatusConflict,
		Err:    schedapi.ErrSlotUnavailable,
	}
	handleScheduleDate(httptest.NewRecorder(), env.jsonReq("/schedule/date", `{"date":"2026-10-22"}`))
	handleScheduleTime(httptest.NewRecorder(), env.jsonReq("/schedule/time", `{"time":"09:00"}`))

	rec := httptest.NewRecorder()
	handleScheduleConfirm(rec, env.form("/schedule/confirm", url.Values{"Name": {"Ana"}, "Email": {"ana@example.com"}}))

	if rec.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "That time has just been taken") {
		t.Error("slot taken message not shown")
	}
	if !strings.Contains(rec.Body.String(), `value="Ana"`) {
		t.Error("contact details not preserved")
	}
	state := composerState(t, env)
	if state.Refresh != 0 || state.Time != "09:00" {
		t.Errorf("state changed on failure: %+v", state)
	}
}

func TestScheduleConfirm_Validation(t *testing.T) {
	env := newWebEnv(t)
	rec := httptest.NewRecorder()
	handleScheduleConfirm(rec, env.jsonReq("/schedule/confirm", `{"name":"Ana","email":"ana@example.com"}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no selection: got %d, want 422", rec.Code)
	}

	handleScheduleDate(httptest.NewRecorder(), env.jsonReq("/schedule/date", `{"date":"2026-10-22"}`))
	handleScheduleTime(httptest.NewRecorder(), env.jsonReq("/schedule/time", `{"time":"09:00"}`))
	rec = httptest.NewRecorder()
	handleScheduleConfirm(rec, env.jsonReq("/schedule/confirm", `{"name":"Ana","email":"nope"}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad email: got %d, want 422", rec.Code)
	}
	if len(env.api.booked) != 0 {
		t.Error("invalid booking reached the API")
	}
}

func TestScheduleSlots_FailureIsRetryable(t *testing.T) {
	env := newWebEnv(t)
	env.api.availErr = &schedapi.Error{Kind: schedapi.KindTransport, Op: "GET /schedule/availability", Err: errors.New("connection refused")}
	handleScheduleDate(httptest.NewRecorder(), env.jsonReq("/schedule/date", `{"date":"2026-10-22"}`))

	rec := httptest.NewRecorder()
	handleScheduleSlots(rec, env.request("GET", "/schedule/slots", "", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var view slotViewJSON
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Error == "" || !view.Retryable || len(view.Slots) != 0 {
		t.Errorf("view = %+v, want retryable error", view)
	}

	env.api.mu.Lock()
	env.api.availErr = nil
	env.api.mu.Unlock()
	rec = httptest.NewRecorder()
	handleScheduleRetry(rec, env.jsonReq("/schedule/retry", `{}`))
	view = slotViewJSON{}
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Error != "" || len(view.Slots) != 2 {
		t.Errorf("after retry view = %+v", view)
	}
}

func TestSchedule_RequiresVisitor(t *testing.T) {
	newWebEnv(t)
	rec := httptest.NewRecorder()
	handleSchedule(rec, httptest.NewRequest("GET", "/schedule", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}

// --- Student portal ---

func TestStudentPortal_NoCredentialRedirects(t *testing.T) {
	env := newWebEnv(t)
	rec := httptest.NewRecorder()
	handleStudentPortal(rec, env.request("GET", "/student", "", ""))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/student/login" {
		t.Errorf("got %d %q, want redirect to login", rec.Code, rec.Header().Get("Location"))
	}
	if len(env.api.tokens) != 0 {
		t.Error("auth API called without a token")
	}
}

func TestStudentLogin_RememberThenPortal(t *testing.T) {
	env := newWebEnv(t)
	env.api.login = schedapi.LoginResult{Token: "tok-1", Role: "student", User: json.RawMessage(`{"name":"Grace"}`)}
	env.api.profile = schedapi.Profile{Status: 200, Success: true, User: json.RawMessage(`{"name":"Grace"}`)}

	rec := httptest.NewRecorder()
	handleStudentLogin(rec, env.form("/student/login", url.Values{
		"Email":    {"grace@example.com"},
		"Password": {"secret"},
		"Remember": {"on"},
	}))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/student" {
		t.Fatalf("login: got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	token, ok, err := env.persistent().Get(context.Background(), domainCredential.KeyToken)
	if err != nil || !ok || token != "tok-1" {
		t.Fatalf("persistent token = %q %v %v", token, ok, err)
	}

	rec = httptest.NewRecorder()
	handleStudentPortal(rec, env.request("GET", "/student", "", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("portal: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Welcome back, Grace") {
		t.Error("portal does not greet the student")
	}
	if len(env.api.tokens) != 1 || env.api.tokens[0] != "tok-1" {
		t.Errorf("validated tokens = %v", env.api.tokens)
	}
}

func TestStudentLogin_Rejected(t *testing.T) {
	env := newWebEnv(t)
	env.api.loginErr = &schedapi.Error{Kind: schedapi.KindBusiness, Op: "POST /student/login", Status: 401, Message: "Invalid email or password"}

	rec := httptest.NewRecorder()
	handleStudentLogin(rec, env.form("/student/login", url.Values{"Email": {"g@example.com"}, "Password": {"x"}}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid email or password") {
		t.Error("service message not shown")
	}
	if _, ok, _ := env.session.Storage.Get(context.Background(), domainCredential.KeyToken); ok {
		t.Error("token stored after a rejected login")
	}
}

func TestStudentPortal_RejectedTokenIsCleared(t *testing.T) {
	env := newWebEnv(t)
	ctx := context.Background()
	for k, v := range (domainCredential.StudentCredential{Token: "old", Role: "student", User: `{"name":"G"}`}).Values() {
		if err := env.persistent().Set(ctx, k, v); err != nil {
			t.Fatal(err)
		}
	}
	env.api.profile = schedapi.Profile{Status: 401, Success: false}

	rec := httptest.NewRecorder()
	handleStudentPortal(rec, env.request("GET", "/student", "", ""))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("got %d, want 303", rec.Code)
	}
	for _, k := range domainCredential.Keys {
		if _, ok, _ := env.persistent().Get(ctx, k); ok {
			t.Errorf("key %s survived a rejected token", k)
		}
	}
}

func TestHandleClearAuth(t *testing.T) {
	env := newWebEnv(t)
	ctx := context.Background()
	cred := domainCredential.StudentCredential{Token: "t", Role: "student", User: `{"name":"G"}`}
	for k, v := range cred.Values() {
		env.persistent().Set(ctx, k, v)
		env.session.Storage.Set(ctx, k, v)
	}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handleClearAuth(rec, env.request("GET", "/clear-auth", "", ""))
		if rec.Code != http.StatusOK {
			t.Fatalf("visit %d: got %d", i, rec.Code)
		}
		body := rec.Body.String()
		for _, want := range []string{`"student_token"`, "localStorage", "sessionStorage", `href="/student/login"`} {
			if !strings.Contains(body, want) {
				t.Errorf("visit %d: page missing %s", i, want)
			}
		}
	}

	for _, k := range domainCredential.Keys {
		_, inPersistent, _ := env.persistent().Get(ctx, k)
		_, inSession, _ := env.session.Storage.Get(ctx, k)
		if inPersistent || inSession {
			t.Errorf("%s still present: persistent=%v session=%v", k, inPersistent, inSession)
		}
	}
}

// --- Health and middleware wiring ---

func TestHandleReadyz(t *testing.T) {
	newWebEnv(t)
	rec := httptest.NewRecorder()
	handleReadyz(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["perf"] == nil || body["outbox"] == nil {
		t.Errorf("body = %v", body)
	}
}

func TestNewMux_CSRFAndVisitor(t *testing.T) {
	env := newWebEnv(t)
	handler := NewMux(stores, env.api, Options{
		CSRFKey:   []byte(strings.Repeat("c", 32)),
		Collector: perf.NewCollector(100),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz: got %d %q", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if strings.HasPrefix(c.Name, "ministry_") {
			t.Errorf("healthz set visitor cookie %s", c.Name)
		}
	}

	before := Sessions().Len()
	for _, path := range []string{"/", "/about"} {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		for _, c := range rec.Result().Cookies() {
			if strings.HasPrefix(c.Name, "ministry_") {
				t.Errorf("%s set visitor cookie %s", path, c.Name)
			}
		}
	}
	if after := Sessions().Len(); after != before {
		t.Errorf("content pages created %d sessions", after-before)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/contact", strings.NewReader("Name=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("form post without token: got %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/schedule", nil)
	req.Header.Set("Accept", "text/html")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule page: got %d", rec.Code)
	}
	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
	}
	if !names["ministry_device"] || !names["ministry_session"] {
		t.Errorf("visitor cookies = %v", names)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers missing")
	}
}
