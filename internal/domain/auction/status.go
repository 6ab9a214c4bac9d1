package auction

// Status is the auction lifecycle stage. Exactly one status at any instant;
// the transition table in auction.go is the only way to change it.
type Status int

const (
	StatusDraft Status = iota
	StatusPendingApproval
	StatusScheduled
	StatusActive
	StatusEnded
	StatusBidAccepted
	StatusBidRejected
	StatusRejected
	StatusCancelled
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusPendingApproval:
		return "pending_approval"
	case StatusScheduled:
		return "scheduled"
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	case StatusBidAccepted:
		return "bid_accepted"
	case StatusBidRejected:
		return "bid_rejected"
	case StatusRejected:
		return "rejected"
	case StatusCancelled:
		return "cancelled"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions exist for the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusBidRejected, StatusRejected:
		return true
	}
	return false
}

// ParseStatus maps the persisted string form back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "draft":
		return StatusDraft
	case "pending_approval":
		return StatusPendingApproval
	case "scheduled":
		return StatusScheduled
	case "active":
		return StatusActive
	case "ended":
		return StatusEnded
	case "bid_accepted":
		return StatusBidAccepted
	case "bid_rejected":
		return StatusBidRejected
	case "rejected":
		return StatusRejected
	case "cancelled":
		return StatusCancelled
	case "completed":
		return StatusCompleted
	default:
		return StatusDraft
	}
}

// TokenPaymentStatus tracks the post-win deposit obligation.
type TokenPaymentStatus int

const (
	TokenNotRequired TokenPaymentStatus = iota
	TokenPending
	TokenPaid
	TokenExpired
)

func (s TokenPaymentStatus) String() string {
	switch s {
	case TokenNotRequired:
		return "not_required"
	case TokenPending:
		return "pending"
	case TokenPaid:
		return "paid"
	case TokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ParseTokenPaymentStatus maps the persisted string form back.
func ParseTokenPaymentStatus(s string) TokenPaymentStatus {
	switch s {
	case "pending":
		return TokenPending
	case "paid":
		return TokenPaid
	case "expired":
		return TokenExpired
	default:
		return TokenNotRequired
	}
}
