package feedback

import (
	"strconv"
	"strings"
)

// Event is an inbound user action.
type Event interface {
	event()
}

// RatingKind selects which of the two scores a rating event carries.
type RatingKind string

const (
	RatingUsefulness RatingKind = "useful"
	RatingUsability  RatingKind = "usable"
)

// NavTarget is where a navigation button leads.
type NavTarget string

const (
	NavMenu  NavTarget = "MENU"
	NavClose NavTarget = "CLOSE"
)

type (
	// Start is the /start command.
	Start struct{}
	// ChooseCategory is a menu button press.
	ChooseCategory struct{ Category Category }
	// ChooseFormat is a writing-guide button press.
	ChooseFormat struct {
		Category Category
		Format   Format
	}
	// SubmitText is any free-text message.
	SubmitText struct{ Text string }
	// SubmitRating is a star button press.
	SubmitRating struct {
		Kind  RatingKind
		Value int
	}
	// FollowupChoice answers the low-score follow-up offer.
	FollowupChoice struct{ Want bool }
	// ContactChoice answers the contact prompt.
	ContactChoice struct{ Type ContactType }
	// Navigate is a menu/close navigation button.
	Navigate struct{ Target NavTarget }
)

func (Start) event()          {}
func (ChooseCategory) event() {}
func (ChooseFormat) event()   {}
func (SubmitText) event()     {}
func (SubmitRating) event()   {}
func (FollowupChoice) event() {}
func (ContactChoice) event()  {}
func (Navigate) event()       {}

// Token prefixes carried in callback data.
const (
	TokenMenu     = "menu"
	TokenFormat   = "fmt"
	TokenUseful   = "useful"
	TokenUsable   = "usable"
	TokenFollowup = "fu"
	TokenContact  = "ct"
	TokenNav      = "nav"
)

// TokenPrefixes lists every callback prefix the engine understands.
var TokenPrefixes = []string{TokenMenu, TokenFormat, TokenUseful, TokenUsable, TokenFollowup, TokenContact, TokenNav}

const tokenSep = ":"

func token(parts ...string) string {
	return strings.Join(parts, tokenSep)
}

// ParseToken decodes a button token into an event. Malformed tokens,
// including out-of-range scores, report false and are meant to be ignored.
func ParseToken(tok string) (Event, bool) {
	parts := strings.Split(strings.TrimSpace(tok), tokenSep)
	if len(parts) < 2 {
		return nil, false
	}
	head, args := parts[0], parts[1:]

	switch head {
	case TokenMenu:
		if len(args) != 1 {
			return nil, false
		}
		c, ok := ParseCategory(args[0])
		if !ok {
			return nil, false
		}
		return ChooseCategory{Category: c}, true
	case TokenFormat:
		if len(args) != 2 {
			return nil, false
		}
		c, ok := ParseCategory(args[0])
		if !ok {
			return nil, false
		}
		switch f := Format(args[1]); f {
		case FormatShort, FormatTemplate, FormatDetailed:
			return ChooseFormat{Category: c, Format: f}, true
		}
		return nil, false
	case TokenUseful, TokenUsable:
		if len(args) != 1 {
			return nil, false
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || !ValidScore(n) {
			return nil, false
		}
		kind := RatingUsefulness
		if head == TokenUsable {
			kind = RatingUsability
		}
		return SubmitRating{Kind: kind, Value: n}, true
	case TokenFollowup:
		switch args[0] {
		case "yes":
			return FollowupChoice{Want: true}, len(args) == 1
		case "no":
			return FollowupChoice{Want: false}, len(args) == 1
		}
		return nil, false
	case TokenContact:
		if len(args) != 1 {
			return nil, false
		}
		switch t := ContactType(args[0]); t {
		case ContactTelegram, ContactEmail, ContactNone:
			return ContactChoice{Type: t}, true
		}
		return nil, false
	case TokenNav:
		if len(args) != 1 {
			return nil, false
		}
		switch t := NavTarget(args[0]); t {
		case NavMenu, NavClose:
			return Navigate{Target: t}, true
		}
		return nil, false
	}
	return nil, false
}
