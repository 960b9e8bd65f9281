package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
	"kakeibo/internal/services"
)

// Phase is where a session is in the sign-in and selection flow.
type Phase int

const (
	SignedOut Phase = iota
	SignedInNoSelection
	DocumentSelected
	RegionSelected
)

func (p Phase) String() string {
	switch p {
	case SignedOut:
		return "signed_out"
	case SignedInNoSelection:
		return "signed_in"
	case DocumentSelected:
		return "document_selected"
	case RegionSelected:
		return "region_selected"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) signedIn() bool {
	return p != SignedOut
}

var (
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrStaleSpreadsheet     = errors.New("spreadsheet does not match the selected document")
	ErrUnknownRegion        = errors.New("region is not listed for the selected document")
	ErrOAuthState           = errors.New("oauth state mismatch")
)

// State is the whole client-side state of one browser session. Every
// transition is a method; fields are never mutated directly.
type State struct {
	id   string
	gate *auth.Gate

	mu          sync.Mutex
	phase       Phase
	documents   []core.DocumentRef
	documentID  string
	spreadsheet core.Spreadsheet
	region      string
	form        core.FormValues
	message     string
	oauthState  string
	lastSeen    time.Time
}

// View is an immutable copy of State for rendering.
type View struct {
	SessionID   string
	Phase       Phase
	Documents   []core.DocumentRef
	DocumentID  string
	Title       string
	Regions     []core.RegionRef
	Region      string
	Form        core.FormValues
	Message     string
	DocumentURL string
}

func (v View) SignedIn() bool { return v.Phase.signedIn() }

func NewState(id string, gate *auth.Gate) *State {
	return &State{id: id, gate: gate}
}

func (s *State) ID() string { return s.id }

func (s *State) Gate() *auth.Gate { return s.gate }

func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// View snapshots the state.
func (s *State) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		SessionID:  s.id,
		Phase:      s.phase,
		Documents:  slices.Clone(s.documents),
		DocumentID: s.documentID,
		Title:      s.spreadsheet.Title,
		Regions:    slices.Clone(s.spreadsheet.Regions),
		Region:     s.region,
		Form:       s.form,
		Message:    s.message,
	}
	if s.documentID != "" {
		v.DocumentURL = core.SpreadsheetURL(s.documentID)
	}
	return v
}

// Selection returns the selected document and region, either possibly empty.
func (s *State) Selection() (documentID, region string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentID, s.region
}

// BeginSignIn issues a fresh OAuth state value for the consent redirect.
func (s *State) BeginSignIn() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != SignedOut {
		return "", fmt.Errorf("sign in from %s: %w", s.phase, ErrTransitionNotAllowed)
	}
	s.oauthState = uuid.NewString()
	return s.oauthState, nil
}

// SignIn checks the OAuth state and acquires the credential:
// SignedOut -> SignedInNoSelection.
func (s *State) SignIn(ctx context.Context, oauthState, code string) error {
	s.mu.Lock()
	if s.phase != SignedOut {
		s.mu.Unlock()
		return fmt.Errorf("sign in from %s: %w", s.phase, ErrTransitionNotAllowed)
	}
	expected := s.oauthState
	s.oauthState = ""
	s.mu.Unlock()

	if expected == "" || oauthState != expected {
		return ErrOAuthState
	}
	if err := s.gate.Acquire(ctx, code); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != SignedOut {
		return nil
	}
	s.phase = SignedInNoSelection
	s.message = ""
	return nil
}

// SignOut releases the credential and clears documents, selection and form.
// It is allowed from every phase.
func (s *State) SignOut() {
	s.gate.Release()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = SignedOut
	s.documents = nil
	s.documentID = ""
	s.spreadsheet = core.Spreadsheet{}
	s.region = ""
	s.form = core.FormValues{}
	s.message = ""
	s.oauthState = ""
}

// SetDocuments replaces the document list.
func (s *State) SetDocuments(docs []core.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.phase.signedIn() {
		return fmt.Errorf("set documents while %s: %w", s.phase, ErrTransitionNotAllowed)
	}
	s.documents = slices.Clone(docs)
	return nil
}

// SelectDocument chooses a spreadsheet and clears any selected region. An empty
// id clears the selection.
func (s *State) SelectDocument(documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.phase.signedIn() {
		return fmt.Errorf("select document while %s: %w", s.phase, ErrTransitionNotAllowed)
	}
	s.documentID = documentID
	s.spreadsheet = core.Spreadsheet{ID: documentID}
	s.region = ""
	if documentID == "" {
		s.phase = SignedInNoSelection
	} else {
		s.phase = DocumentSelected
	}
	return nil
}

// SetSpreadsheet stores the title and regions of the selected document. A
// selected region that no longer exists is cleared.
func (s *State) SetSpreadsheet(sp core.Spreadsheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != DocumentSelected && s.phase != RegionSelected {
		return fmt.Errorf("set spreadsheet while %s: %w", s.phase, ErrTransitionNotAllowed)
	}
	if sp.ID != s.documentID {
		return ErrStaleSpreadsheet
	}
	s.spreadsheet = sp
	if s.region != "" && !sp.HasRegion(s.region) {
		s.region = ""
		s.phase = DocumentSelected
	}
	return nil
}

// SelectRegion chooses a sheet of the selected document. An empty name clears it.
func (s *State) SelectRegion(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != DocumentSelected && s.phase != RegionSelected {
		return fmt.Errorf("select region while %s: %w", s.phase, ErrTransitionNotAllowed)
	}
	if name == "" {
		s.region = ""
		s.phase = DocumentSelected
		return nil
	}
	if !s.spreadsheet.HasRegion(name) {
		return fmt.Errorf("%q: %w", name, ErrUnknownRegion)
	}
	s.region = name
	s.phase = RegionSelected
	return nil
}

// EditField updates one form field.
func (s *State) EditField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.phase.signedIn() {
		return fmt.Errorf("edit field while %s: %w", s.phase, ErrTransitionNotAllowed)
	}
	return s.form.Set(name, value)
}

// SetForm replaces the whole form, as posted by the entry form.
func (s *State) SetForm(form core.FormValues) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.phase.signedIn() {
		return fmt.Errorf("edit form while %s: %w", s.phase, ErrTransitionNotAllowed)
	}
	s.form = form
	return nil
}

// ApplyResult records the submission message. The form is cleared only on success.
func (s *State) ApplyResult(res services.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = res.Message
	if res.OK {
		s.form = core.FormValues{}
	}
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
