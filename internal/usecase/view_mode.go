package usecase

// ViewMode is the ephemeral interaction state of the open conversation.
// Exactly one mode is active, so a message cannot be edited while a menu
// is open on another one.
type ViewMode interface {
	Kind() string
}

const (
	ModeIdle     = "idle"
	ModeEditing  = "editing"
	ModeMenuOpen = "menu_open"
)

type IdleMode struct{}

func (IdleMode) Kind() string { return ModeIdle }

type EditingMode struct {
	MessageID string
	Content   string
}

func (EditingMode) Kind() string { return ModeEditing }

type MenuOpenMode struct {
	MessageID string
	Position  Position
}

func (MenuOpenMode) Kind() string { return ModeMenuOpen }

// Position is where the context menu was requested, in shell coordinates.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ClickTarget describes a click the shell reports for outside-click
// handling.
type ClickTarget struct {
	InMenu    bool `json:"inMenu"`
	OnTrigger bool `json:"onTrigger"`
}

// ModeView is the serializable form of a ViewMode.
type ModeView struct {
	Kind      string    `json:"kind"`
	MessageID string    `json:"messageId,omitempty"`
	Content   string    `json:"content,omitempty"`
	Position  *Position `json:"position,omitempty"`
}

func viewOfMode(mode ViewMode) ModeView {
	switch m := mode.(type) {
	case EditingMode:
		return ModeView{Kind: ModeEditing, MessageID: m.MessageID, Content: m.Content}
	case MenuOpenMode:
		pos := m.Position
		return ModeView{Kind: ModeMenuOpen, MessageID: m.MessageID, Position: &pos}
	default:
		return ModeView{Kind: ModeIdle}
	}
}

// modeTargets reports whether mode refers to messageID.
func modeTargets(mode ViewMode, messageID string) bool {
	switch m := mode.(type) {
	case EditingMode:
		return m.MessageID == messageID
	case MenuOpenMode:
		return m.MessageID == messageID
	}
	return false
}
