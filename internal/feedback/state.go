package feedback

import (
	"fmt"
	"strings"
)

// Step identifies which question the conversation is currently waiting on.
type Step string

const (
	StepMenu               Step = "MENU"
	StepAwaitingText       Step = "AWAITING_TEXT"
	StepAwaitingUsefulness Step = "AWAITING_USEFULNESS_SCORE"
	StepAwaitingUsability  Step = "AWAITING_USABILITY_SCORE"
	StepAwaitingFollowup   Step = "AWAITING_FOLLOWUP"
	StepAwaitingContact    Step = "AWAITING_CONTACT_VALUE"
	StepDone               Step = "DONE"
)

// Category is the kind of feedback the user chose from the menu.
type Category string

const (
	CategoryReview Category = "REVIEW"
	CategoryBug    Category = "BUG"
	CategoryIdea   Category = "IDEA"
)

// Categories lists menu categories in display order.
var Categories = []Category{CategoryReview, CategoryBug, CategoryIdea}

// ParseCategory accepts the canonical upper-case category names.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryReview, CategoryBug, CategoryIdea:
		return c, true
	}
	return "", false
}

// Format is the writing guide the user picked before typing the comment.
type Format string

const (
	FormatShort    Format = "SHORT"
	FormatTemplate Format = "TEMPLATE"
	FormatDetailed Format = "DETAILED"
)

// FormatsFor returns the formats offered for a category.
func FormatsFor(c Category) []Format {
	if c == CategoryReview {
		return []Format{FormatShort, FormatTemplate, FormatDetailed}
	}
	return []Format{FormatTemplate}
}

func formatAllowed(c Category, f Format) bool {
	for _, v := range FormatsFor(c) {
		if v == f {
			return true
		}
	}
	return false
}

// ContactType is how the user agreed to be contacted back.
type ContactType string

const (
	ContactTelegram ContactType = "TG"
	ContactEmail    ContactType = "EMAIL"
	ContactNone     ContactType = "NONE"
)

// State is the per-user conversation position. Each variant carries only the
// fields that are valid in its step.
type State interface {
	Step() Step
	state()
}

// Menu is the idle state shown after /start, navigation or a reset.
type Menu struct{}

// AwaitingText waits for the primary comment.
type AwaitingText struct {
	Category Category
	Format   Format
}

// AwaitingUsefulness waits for the first rating.
type AwaitingUsefulness struct {
	Category Category
	Comment  string
}

// AwaitingUsability waits for the second rating; the submission is persisted on success.
type AwaitingUsability struct {
	Category   Category
	Comment    string
	Usefulness int
}

// AwaitingFollowup waits for the low-score clarification text.
type AwaitingFollowup struct {
	RecordID string
}

// AwaitingContact shows the contact choice; EmailPending means the next text is an email.
type AwaitingContact struct {
	RecordID     string
	EmailPending bool
}

// Done is the quiescent state after a cycle. RecordID is kept while the
// follow-up offer is still open.
type Done struct {
	RecordID        string
	FollowupOffered bool
}

func (Menu) Step() Step               { return StepMenu }
func (AwaitingText) Step() Step       { return StepAwaitingText }
func (AwaitingUsefulness) Step() Step { return StepAwaitingUsefulness }
func (AwaitingUsability) Step() Step  { return StepAwaitingUsability }
func (AwaitingFollowup) Step() Step   { return StepAwaitingFollowup }
func (AwaitingContact) Step() Step    { return StepAwaitingContact }
func (Done) Step() Step               { return StepDone }

func (Menu) state()               {}
func (AwaitingText) state()       {}
func (AwaitingUsefulness) state() {}
func (AwaitingUsability) state()  {}
func (AwaitingFollowup) state()   {}
func (AwaitingContact) state()    {}
func (Done) state()               {}

// submittedRecord returns the persisted row id carried by post-submission states.
func submittedRecord(st State) (string, bool) {
	var id string
	switch s := st.(type) {
	case AwaitingFollowup:
		id = s.RecordID
	case AwaitingContact:
		id = s.RecordID
	case Done:
		id = s.RecordID
	}
	return id, id != ""
}

// Snapshot is a flat projection of State used for storage and logging.
type Snapshot struct {
	Step            Step     `json:"step"`
	Category        Category `json:"category,omitempty"`
	Format          Format   `json:"format,omitempty"`
	Comment         string   `json:"comment,omitempty"`
	Usefulness      int      `json:"usefulness,omitempty"`
	RecordID        string   `json:"record_id,omitempty"`
	EmailPending    bool     `json:"email_pending,omitempty"`
	FollowupOffered bool     `json:"followup_offered,omitempty"`
}

// SnapshotOf flattens a state.
func SnapshotOf(st State) Snapshot {
	switch s := st.(type) {
	case AwaitingText:
		return Snapshot{Step: StepAwaitingText, Category: s.Category, Format: s.Format}
	case AwaitingUsefulness:
		return Snapshot{Step: StepAwaitingUsefulness, Category: s.Category, Comment: s.Comment}
	case AwaitingUsability:
		return Snapshot{Step: StepAwaitingUsability, Category: s.Category, Comment: s.Comment, Usefulness: s.Usefulness}
	case AwaitingFollowup:
		return Snapshot{Step: StepAwaitingFollowup, RecordID: s.RecordID}
	case AwaitingContact:
		return Snapshot{Step: StepAwaitingContact, RecordID: s.RecordID, EmailPending: s.EmailPending}
	case Done:
		return Snapshot{Step: StepDone, RecordID: s.RecordID, FollowupOffered: s.FollowupOffered}
	default:
		return Snapshot{Step: StepMenu}
	}
}

// State rebuilds the variant, rejecting field combinations that cannot occur.
func (s Snapshot) State() (State, error) {
	needCategory := func() error {
		if _, ok := ParseCategory(string(s.Category)); !ok {
			return fmt.Errorf("snapshot %s: invalid category %q", s.Step, s.Category)
		}
		return nil
	}
	needComment := func() error {
		if !ValidText(s.Comment) {
			return fmt.Errorf("snapshot %s: empty comment", s.Step)
		}
		return nil
	}
	needRecord := func() error {
		if s.RecordID == "" {
			return fmt.Errorf("snapshot %s: missing record id", s.Step)
		}
		return nil
	}

	switch s.Step {
	case StepMenu, "":
		return Menu{}, nil
	case StepAwaitingText:
		if err := needCategory(); err != nil {
			return nil, err
		}
		if s.Format != "" && !formatAllowed(s.Category, s.Format) {
			return nil, fmt.Errorf("snapshot %s: format %q not allowed for %s", s.Step, s.Format, s.Category)
		}
		return AwaitingText{Category: s.Category, Format: s.Format}, nil
	case StepAwaitingUsefulness:
		if err := needCategory(); err != nil {
			return nil, err
		}
		if err := needComment(); err != nil {
			return nil, err
		}
		return AwaitingUsefulness{Category: s.Category, Comment: s.Comment}, nil
	case StepAwaitingUsability:
		if err := needCategory(); err != nil {
			return nil, err
		}
		if err := needComment(); err != nil {
			return nil, err
		}
		if !ValidScore(s.Usefulness) {
			return nil, fmt.Errorf("snapshot %s: invalid usefulness %d", s.Step, s.Usefulness)
		}
		return AwaitingUsability{Category: s.Category, Comment: s.Comment, Usefulness: s.Usefulness}, nil
	case StepAwaitingFollowup:
		if err := needRecord(); err != nil {
			return nil, err
		}
		return AwaitingFollowup{RecordID: s.RecordID}, nil
	case StepAwaitingContact:
		if err := needRecord(); err != nil {
			return nil, err
		}
		return AwaitingContact{RecordID: s.RecordID, EmailPending: s.EmailPending}, nil
	case StepDone:
		if s.FollowupOffered && s.RecordID == "" {
			return nil, fmt.Errorf("snapshot %s: follow-up offered without record id", s.Step)
		}
		return Done{RecordID: s.RecordID, FollowupOffered: s.FollowupOffered}, nil
	}
	return nil, fmt.Errorf("snapshot: unknown step %q", s.Step)
}
