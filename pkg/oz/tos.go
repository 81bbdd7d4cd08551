package oz

// MinimumTOS is the oldest terms-of-service version a ticket may carry
// without being restricted. Bump on every terms release.
const MinimumTOS = 20110623

// Restriction limits what an otherwise valid ticket may be used for.
type Restriction string

const (
	// RestrictionNone is the zero restriction.
	RestrictionNone Restriction = ""
	// RestrictionTOS marks a session pending acceptance of the current terms.
	RestrictionTOS Restriction = "tos"
)

// RestrictionFor derives the restriction from the ticket's extension data.
// It is a pure function of ext.tos against MinimumTOS and must be recomputed
// on every reissue, since the minimum moves between releases.
func RestrictionFor(t *Ticket) Restriction {
	if t == nil || t.Ext == nil {
		return RestrictionNone
	}
	if t.Ext.TOS < MinimumTOS {
		return RestrictionTOS
	}
	return RestrictionNone
}
