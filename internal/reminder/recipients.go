package reminder

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"garasiku/internal/notifications/digest"
	"garasiku/internal/types"
)

// DigestMode decides how recipient lists map to digests.
type DigestMode string

const (
	// ModeAuto picks combined when only the combined list is configured and
	// split otherwise.
	ModeAuto     DigestMode = "auto"
	ModeSplit    DigestMode = "split"
	ModeCombined DigestMode = "combined"
)

// Group names, used in logs, metrics and receipts.
const (
	GroupService  = "service"
	GroupAdmin    = "admin"
	GroupCombined = "combined"
)

// RecipientConfig holds the raw comma-separated lists and subjects.
type RecipientConfig struct {
	Mode DigestMode

	Service  string
	Admin    string
	Combined string

	ServiceSubject  string
	AdminSubject    string
	CombinedSubject string
}

// RecipientGroup is one audience: a digest layout and its addresses.
type RecipientGroup struct {
	Name      string
	Layout    digest.Layout
	Subject   string
	Addresses []string
}

var addressValidator = validator.New()

// ParseRecipients splits a comma-separated list, trimming each entry and
// dropping empty ones. It never returns nil.
func ParseRecipients(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// ResolveGroups turns the configuration into the non-empty groups to send,
// in dispatch order. It fails when no group has an address, or when any
// address is malformed.
func ResolveGroups(cfg RecipientConfig) ([]RecipientGroup, error) {
	service := ParseRecipients(cfg.Service)
	admin := ParseRecipients(cfg.Admin)
	combined := ParseRecipients(cfg.Combined)

	mode := cfg.Mode
	if mode == "" || mode == ModeAuto {
		mode = ModeSplit
		if len(service) == 0 && len(admin) == 0 && len(combined) > 0 {
			mode = ModeCombined
		}
	}

	var candidates []RecipientGroup
	switch mode {
	case ModeSplit:
		candidates = []RecipientGroup{
			{Name: GroupService, Layout: digest.LayoutMaintenance, Subject: cfg.ServiceSubject, Addresses: service},
			{Name: GroupAdmin, Layout: digest.LayoutAdministrative, Subject: cfg.AdminSubject, Addresses: admin},
		}
	case ModeCombined:
		candidates = []RecipientGroup{
			{Name: GroupCombined, Layout: digest.LayoutCombined, Subject: cfg.CombinedSubject, Addresses: combined},
		}
	default:
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, fmt.Sprintf("unknown digest mode %q", cfg.Mode), nil)
	}

	groups := make([]RecipientGroup, 0, len(candidates))
	for _, g := range candidates {
		if len(g.Addresses) == 0 {
			continue
		}
		for _, addr := range g.Addresses {
			if err := addressValidator.Var(addr, "email"); err != nil {
				return nil, types.NewAppError(
					types.ErrCodeReminderInvalidRecipient,
					"Invalid recipient email",
					fmt.Errorf("group %s: %q is not an email address", g.Name, addr),
				)
			}
		}
		groups = append(groups, g)
	}

	if len(groups) == 0 {
		return nil, types.NewAppError(types.ErrCodeReminderNoRecipients, "No recipient emails defined", nil)
	}
	return groups, nil
}
