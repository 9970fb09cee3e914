package models

// Domain event types broadcast to the notification hub. Delivery is
// fire-and-forget and never affects the originating transaction.
const (
	EventTournamentStatusChanged = "TOURNAMENT_STATUS_CHANGED"
	EventTournamentCanceled      = "TOURNAMENT_CANCELED"
	EventParticipantRegistered   = "PARTICIPANT_REGISTERED"
	EventParticipantWithdrew     = "PARTICIPANT_WITHDREW"
	EventMatchResultSubmitted    = "MATCH_RESULT_SUBMITTED"
	EventMatchCompleted          = "MATCH_COMPLETED"
	EventDisputeOpened           = "DISPUTE_OPENED"
	EventDisputeResolved         = "DISPUTE_RESOLVED"
	EventRefundIssued            = "REFUND_ISSUED"
	EventPrizePaid               = "PRIZE_PAID"
)
