package http

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
	"kakeibo/internal/services"
	"kakeibo/internal/session"
	"kakeibo/internal/sheets"
)

// handleIndex renders the whole page for the session's current phase. When
// signed in, the document list and the selected spreadsheet's regions are
// loaded in parallel; a failed listing leaves its list empty.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.currentSession(w, r, true)
	if st.Phase() != session.SignedOut {
		s.refreshDirectories(r.Context(), st)
	}
	s.render(w, r, tmplIndex, s.pageData(st), nil)
}

// handleSelectDocument selects a spreadsheet (or clears the selection when
// document_id is empty) and re-renders the app section.
func (s *Server) handleSelectDocument(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signedIn(w, r)
	if !ok {
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	documentID := sanitizeInput(r.PostForm.Get(formDocumentID))
	if err := st.SelectDocument(documentID); err != nil {
		s.transitionFailed(w, r, err)
		return
	}
	if documentID != "" {
		s.loadSpreadsheet(r.Context(), st)
	}
	s.respondApp(w, r, st, NewHTMXResponse().TriggerSelectionChanged())
}

// handleSelectRegion selects a sheet of the selected spreadsheet. A name that
// is not listed is rejected with 422.
func (s *Server) handleSelectRegion(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signedIn(w, r)
	if !ok {
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	if err := st.SelectRegion(r.PostForm.Get(formRegion)); err != nil {
		if errors.Is(err, session.ErrUnknownRegion) {
			UnprocessableEntityError("シートが見つかりません").Write(w)
			return
		}
		s.transitionFailed(w, r, err)
		return
	}
	s.respondApp(w, r, st, NewHTMXResponse().TriggerSelectionChanged())
}

// handleCreateEntry stores the posted form in the session, submits it and
// renders the form again with the outcome message. A successful submission
// clears the form; a failed one keeps the values for another try.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signedIn(w, r)
	if !ok {
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	if err := st.SetForm(ParseEntryForm(r.PostForm)); err != nil {
		s.transitionFailed(w, r, err)
		return
	}

	workbook, err := s.workbook(r.Context(), st)
	if err != nil {
		s.transitionFailed(w, r, err)
		return
	}

	documentID, region := st.Selection()
	res := s.orchestrator(workbook, st.ID()).Submit(r.Context(), documentID, region, st.View().Form)
	st.ApplyResult(res)

	resp := NewHTMXResponse()
	switch {
	case res.OK:
		resp.TriggerEntryAppended(region, res.Entry.ID).TriggerFormReset().TriggerSuccessNotification(res.Message)
	case res.Message == "":
	default:
		resp.TriggerErrorNotification(res.Message)
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, tmplForm, s.pageData(st), resp)
}

// handleEditField stores one edited field as the user leaves it, so the form
// survives a reload before submission. htmx names the field in HX-Trigger-Name.
func (s *Server) handleEditField(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signedIn(w, r)
	if !ok {
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	name := r.Header.Get("HX-Trigger-Name")
	if name == "" {
		name = r.PostForm.Get("field")
	}
	if err := st.EditField(name, r.PostForm.Get(name)); err != nil {
		if errors.Is(err, core.ErrUnknownField) {
			ErrorResponse(http.StatusUnprocessableEntity, "不明な項目です").Write(w)
			return
		}
		s.transitionFailed(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConfirm renders the save confirmation dialog opened by the back button.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signedIn(w, r)
	if !ok {
		return
	}
	s.render(w, r, tmplConfirm, s.pageData(st), nil)
}

// signedIn returns the session when it holds a credential. Otherwise it
// answers 401 (or redirects plain form posts) and reports false.
func (s *Server) signedIn(w http.ResponseWriter, r *http.Request) (*session.State, bool) {
	st := s.currentSession(w, r, false)
	if st != nil && st.Phase() != session.SignedOut {
		return st, true
	}
	if isHTMX(r) {
		UnauthorizedError("サインインしてください").Redirect("/").Write(w)
	} else {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
	return nil, false
}

func (s *Server) transitionFailed(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Request rejected",
		log.NewFields().WithComponent(log.ComponentSession).WithError(err).ToSlice()...)
	if errors.Is(err, session.ErrTransitionNotAllowed) {
		ErrorResponse(http.StatusConflict, "この操作は現在できません").Write(w)
		return
	}
	BadRequestError("リクエストを処理できません").Write(w)
}

// respondApp re-renders the selection and form section for htmx, or sends a
// plain form post back to the page.
func (s *Server) respondApp(w http.ResponseWriter, r *http.Request, st *session.State, resp *HTMXResponseBuilder) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.refreshDocuments(r.Context(), st)
	s.render(w, r, tmplApp, s.pageData(st), resp)
}

// orchestrator builds a per-request orchestrator over the session's workbook.
// The write queue, journal and publisher are shared by every session.
func (s *Server) orchestrator(workbook sheets.Workbook, sessionID string) *services.Orchestrator {
	opts := []services.OrchestratorOption{
		services.WithSessionID(sessionID),
		services.WithClock(s.deps.Clock),
	}
	if s.deps.Queue != nil {
		opts = append(opts, services.WithWriteQueue(s.deps.Queue))
	}
	if s.deps.Recorder != nil {
		opts = append(opts, services.WithRecorder(s.deps.Recorder))
	}
	if s.deps.Publisher != nil {
		opts = append(opts, services.WithPublisher(s.deps.Publisher))
	}
	return services.NewOrchestrator(workbook, opts...)
}

func (s *Server) workbook(ctx context.Context, st *session.State) (sheets.Workbook, error) {
	token, err := st.Gate().Token()
	if err != nil {
		return nil, err
	}
	return s.deps.Workbooks.Workbook(ctx, token)
}

func (s *Server) refreshDirectories(ctx context.Context, st *session.State) {
	documentID, _ := st.Selection()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.refreshDocuments(gctx, st)
		return nil
	})
	if documentID != "" {
		g.Go(func() error {
			s.loadSpreadsheet(gctx, st)
			return nil
		})
	}
	_ = g.Wait()
}

// refreshDocuments lists the signed-in user's spreadsheets, through the cache.
func (s *Server) refreshDocuments(ctx context.Context, st *session.State) {
	workbook, err := s.workbook(ctx, st)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	docs, err := s.documents.Documents(ctx, st.ID(), workbook.ListDocuments)
	if err != nil {
		metrics.DirectoryErrors.WithLabelValues("documents").Inc()
		log.FromContext(ctx).ErrorContext(ctx, "Failed to list spreadsheets",
			log.NewFields().WithComponent(log.ComponentSheets).WithOperation(log.OpList).WithError(err).ToSlice()...)
		docs = nil
	}
	_ = st.SetDocuments(docs)
}

// loadSpreadsheet fetches the title and regions of the selected document. On
// failure the region list stays empty.
func (s *Server) loadSpreadsheet(ctx context.Context, st *session.State) {
	documentID, _ := st.Selection()
	if documentID == "" {
		return
	}
	workbook, err := s.workbook(ctx, st)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	sp, err := workbook.GetSpreadsheet(ctx, documentID)
	if err != nil {
		metrics.DirectoryErrors.WithLabelValues("regions").Inc()
		log.FromContext(ctx).ErrorContext(ctx, "Failed to list sheets",
			log.NewFields().WithComponent(log.ComponentSheets).WithOperation(log.OpList).WithTarget(documentID, "").WithError(err).ToSlice()...)
		return
	}
	if err := st.SetSpreadsheet(sp); err != nil && !errors.Is(err, session.ErrStaleSpreadsheet) {
		log.FromContext(ctx).WarnContext(ctx, "Dropped spreadsheet listing",
			log.NewFields().WithComponent(log.ComponentSession).WithError(err).ToSlice()...)
	}
}
