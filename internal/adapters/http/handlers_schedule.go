package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"ministry/internal/adapters/http/middleware"
	"ministry/internal/adapters/schedapi"
	"ministry/internal/application/schedulepage"
	"ministry/internal/domain/schedule"
)

// Shared confirm section (set by NewMux). It holds no per-visitor state.
var confirmSection *schedulepage.ConfirmSection

const monthLayout = "2006-01"

// bookingValidationErrors are caused by the visitor's input, not by the service.
var bookingValidationErrors = []error{
	schedulepage.ErrCannotConfirm,
	schedule.ErrNoDate,
	schedule.ErrNoTime,
	schedule.ErrEmptyName,
	schedule.ErrNameTooLong,
	schedule.ErrInvalidEmail,
	schedule.ErrPhoneTooLong,
	schedule.ErrNotesTooLong,
}

type stateJSON struct {
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	Refresh    uint64 `json:"refresh"`
	CanConfirm bool   `json:"can_confirm"`
}

type slotJSON struct {
	Time      string `json:"time"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

type slotViewJSON struct {
	Date      string     `json:"date,omitempty"`
	Slots     []slotJSON `json:"slots"`
	Selected  string     `json:"selected,omitempty"`
	Error     string     `json:"error,omitempty"`
	Retryable bool       `json:"retryable,omitempty"`
}

func toStateJSON(s schedule.State) stateJSON {
	return stateJSON{Date: s.Date.String(), Time: s.Time, Refresh: s.Refresh, CanConfirm: s.CanConfirm()}
}

func toSlotViewJSON(v schedulepage.SlotView) slotViewJSON {
	out := slotViewJSON{Date: v.Date.String(), Selected: v.Selected, Slots: []slotJSON{}}
	if v.Stale {
		out.Error = staleMessage
		out.Retryable = true
		return out
	}
	if v.Err != nil {
		out.Error = v.Message
		out.Retryable = v.Retryable
		return out
	}
	for _, s := range v.Slots {
		out.Slots = append(out.Slots, slotJSON{Time: s.Time, Label: s.DisplayLabel(), Available: s.Available})
	}
	return out
}

const staleMessage = "Your selection changed while times were loading. Please try again."

// composerFor returns the requesting visitor's schedule composer, creating it on first use.
func composerFor(r *http.Request) (*schedulepage.Composer, bool) {
	v, ok := middleware.VisitorFromContext(r.Context())
	if !ok {
		return nil, false
	}
	c := v.Attr("schedule", func() any {
		return schedulepage.NewComposer(api, confirmSection)
	})
	composer, ok := c.(*schedulepage.Composer)
	return composer, ok
}

// today returns the current civil date at the site.
func today() schedule.Date {
	return schedule.DateOf(siteNow())
}

// pickerMonth chooses the month shown by the date picker: the month query parameter when
// it is valid and not in the past, else the selected date's month, else the current month.
func pickerMonth(r *http.Request, state schedule.State) schedule.Date {
	now := today()
	current := schedule.Date{Year: now.Year, Month: now.Month, Day: 1}
	if m, err := time.Parse(monthLayout, r.URL.Query().Get("month")); err == nil {
		month := schedule.Date{Year: m.Year(), Month: m.Month(), Day: 1}
		if !month.Before(current) {
			return month
		}
	}
	if state.HasDate() {
		return schedule.Date{Year: state.Date.Year, Month: state.Date.Month, Day: 1}
	}
	return current
}

func scheduleRedirect(w http.ResponseWriter, r *http.Request, state schedule.State, extra url.Values) {
	q := url.Values{}
	if state.HasDate() {
		q.Set("month", state.Date.In(time.UTC).Format(monthLayout))
	}
	for k, v := range extra {
		q[k] = v
	}
	target := "/schedule"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleSchedule handles GET /schedule
func handleSchedule(w http.ResponseWriter, r *http.Request) {
	composer, ok := composerFor(r)
	if !ok {
		http.Error(w, "visitor session required", http.StatusBadRequest)
		return
	}
	renderSchedule(w, r, composer, http.StatusOK, map[string]any{
		"Booked":     r.URL.Query().Get("booked") == "1",
		"BookingRef": r.URL.Query().Get("ref"),
	})
}

// renderSchedule renders the schedule page for the composer's current state.
// extra is merged into the template data.
func renderSchedule(w http.ResponseWriter, r *http.Request, composer *schedulepage.Composer, status int, extra map[string]any) {
	state := composer.Snapshot()
	view := composer.SlotView(r.Context())
	if !isHTMLRequest(r) {
		writeJSON(w, status, map[string]any{
			"state": toStateJSON(state),
			"slots": toSlotViewJSON(view),
		})
		return
	}

	data := map[string]any{
		"Title":      "Plan a visit",
		"State":      state,
		"Picker":     schedulepage.BuildDatePicker(pickerMonth(r, state), state.Date, today(), horizonDays),
		"Slots":      view,
		"StaleNote":  staleMessage,
		"CanConfirm": state.CanConfirm(),
		"Contact":    schedulepage.Contact{},
	}
	for k, v := range extra {
		data[k] = v
	}
	renderTemplateStatus(w, r, status, "schedule.html", data)
}

// handleScheduleDate handles POST /schedule/date
func handleScheduleDate(w http.ResponseWriter, r *http.Request) {
	composer, ok := composerFor(r)
	if !ok {
		http.Error(w, "visitor session required", http.StatusBadRequest)
		return
	}

	raw := ""
	if isJSONRequest(r) {
		var body struct {
			Date string `json:"date"`
		}
		if err := strictDecode(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		raw = body.Date
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		raw = r.FormValue("date")
	}

	d, err := schedule.ParseDate(raw)
	if err == nil && !schedulepage.Bookable(d, today(), horizonDays) {
		err = errors.New("that date cannot be booked")
	}
	if err != nil {
		if isJSONRequest(r) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		renderSchedule(w, r, composer, http.StatusUnprocessableEntity, map[string]any{"Error": err.Error()})
		return
	}

	state := composer.OnDateSelect(d)
	slog.Debug("schedule_date_selected", "date", d.String())
	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, toStateJSON(state))
		return
	}
	scheduleRedirect(w, r, state, nil)
}

// handleScheduleTime handles POST /schedule/time
func handleScheduleTime(w http.ResponseWriter, r *http.Request) {
	composer, ok := composerFor(r)
	if !ok {
		http.Error(w, "visitor session required", http.StatusBadRequest)
		return
	}

	t := ""
	if isJSONRequest(r) {
		var body struct {
			Time string `json:"time"`
		}
		if err := strictDecode(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		t = body.Time
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		t = r.FormValue("time")
	}

	if !composer.Snapshot().HasDate() || t == "" {
		msg := schedule.ErrNoDate.Error()
		if t == "" {
			msg = schedule.ErrNoTime.Error()
		}
		if isJSONRequest(r) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": msg})
			return
		}
		renderSchedule(w, r, composer, http.StatusUnprocessableEntity, map[string]any{"Error": msg})
		return
	}

	state := composer.OnTimeSelect(t)
	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, toStateJSON(state))
		return
	}
	scheduleRedirect(w, r, state, nil)
}

// handleScheduleSlots handles GET /schedule/slots and answers the slot list as JSON.
func handleScheduleSlots(w http.ResponseWriter, r *http.Request) {
	composer, ok := composerFor(r)
	if !ok {
		http.Error(w, "visitor session required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, toSlotViewJSON(composer.SlotView(r.Context())))
}

// handleScheduleRetry handles POST /schedule/retry
func handleScheduleRetry(w http.ResponseWriter, r *http.Request) {
	composer, ok := composerFor(r)
	if !ok {
		http.Error(w, "visitor session required", http.StatusBadRequest)
		return
	}
	view := composer.RetrySlots(r.Context())
	if isJSONRequest(r) || !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, toSlotViewJSON(view))
		return
	}
	scheduleRedirect(w, r, composer.Snapshot(), nil)
}

// handleScheduleConfirm handles POST /schedule/confirm
func handleScheduleConfirm(w http.ResponseWriter, r *http.Request) {
	composer, ok := composerFor(r)
	if !ok {
		http.Error(w, "visitor session required", http.StatusBadRequest)
		return
	}

	var contact schedulepage.Contact
	jsonBody := isJSONRequest(r)
	if jsonBody {
		var body struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Phone string `json:"phone"`
			Notes string `json:"notes"`
		}
		if err := strictDecode(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		contact = schedulepage.Contact{Name: body.Name, Email: body.Email, Phone: body.Phone, Notes: body.Notes}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		contact = schedulepage.Contact{
			Name:  r.FormValue("Name"),
			Email: r.FormValue("Email"),
			Phone: r.FormValue("Phone"),
			Notes: r.FormValue("Notes"),
		}
	}

	booking, err := composer.Confirm(r.Context(), contact)
	if err != nil {
		status, msg := confirmFailure(err)
		if jsonBody {
			writeJSON(w, status, map[string]any{
				"error": msg,
				"state": toStateJSON(composer.Snapshot()),
			})
			return
		}
		renderSchedule(w, r, composer, status, map[string]any{
			"ConfirmError": msg,
			"Contact":      contact,
		})
		return
	}

	if jsonBody {
		writeJSON(w, http.StatusCreated, map[string]any{
			"booking": map[string]string{"id": booking.ID, "date": booking.Date.String(), "time": booking.Time},
			"message": booking.Message,
			"state":   toStateJSON(composer.Snapshot()),
		})
		return
	}
	scheduleRedirect(w, r, composer.Snapshot(), url.Values{"booked": {"1"}, "ref": {booking.ID}})
}

// confirmFailure maps a Confirm error to a status code and a visitor-safe message.
func confirmFailure(err error) (int, string) {
	for _, v := range bookingValidationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, err.Error()
		}
	}
	if errors.Is(err, schedulepage.ErrConfirmBusy) {
		return http.StatusConflict, err.Error()
	}
	var apiErr *schedapi.Error
	if !errors.As(err, &apiErr) {
		slog.Error("booking_confirm_failed", "error", err)
		return http.StatusInternalServerError, schedapi.UserMessage(err)
	}
	switch {
	case errors.Is(err, schedapi.ErrSlotUnavailable):
		return http.StatusConflict, apiErr.UserMessage()
	case apiErr.Kind == schedapi.KindBusiness:
		return http.StatusUnprocessableEntity, apiErr.UserMessage()
	default:
		return http.StatusBadGateway, apiErr.UserMessage()
	}
}
