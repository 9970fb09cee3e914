package services

import "github.com/bracketworks/arena/models"

// Status machines for tournaments, matches and dispute tickets. Every
// write that changes a status must pass through one of these tables;
// terminal statuses have no outgoing edges.

var tournamentTransitions = map[models.TournamentStatus][]models.TournamentStatus{
	models.TournamentStatusPending: {
		models.TournamentStatusRegistrationOpen,
		models.TournamentStatusCanceled,
	},
	models.TournamentStatusRegistrationOpen: {
		models.TournamentStatusRegistrationClosed,
		models.TournamentStatusCanceled,
	},
	models.TournamentStatusRegistrationClosed: {
		models.TournamentStatusRegistrationOpen,
		models.TournamentStatusOngoing,
		models.TournamentStatusCanceled,
	},
	models.TournamentStatusOngoing: {
		models.TournamentStatusCompleted,
		models.TournamentStatusCanceled,
	},
	models.TournamentStatusCompleted: {},
	models.TournamentStatusCanceled:  {},
}

var matchTransitions = map[models.MatchStatus][]models.MatchStatus{
	models.MatchStatusPending: {
		models.MatchStatusScheduled,
		models.MatchStatusCanceled,
	},
	models.MatchStatusScheduled: {
		models.MatchStatusInProgress,
		models.MatchStatusCanceled,
	},
	models.MatchStatusInProgress: {
		models.MatchStatusAwaitingScores,
		models.MatchStatusAwaitingConfirmation,
		models.MatchStatusCanceled,
	},
	models.MatchStatusAwaitingScores: {
		models.MatchStatusAwaitingConfirmation,
		models.MatchStatusCanceled,
	},
	models.MatchStatusAwaitingConfirmation: {
		models.MatchStatusCompleted,
		models.MatchStatusDisputed,
		models.MatchStatusCanceled,
	},
	models.MatchStatusDisputed: {
		// Resolution outcomes: completion (ruled or prior result standing)
		// or a replay. Only dispute resolution walks these edges.
		models.MatchStatusCompleted,
		models.MatchStatusScheduled,
		models.MatchStatusCanceled,
	},
	models.MatchStatusCompleted: {},
	models.MatchStatusCanceled:  {},
}

var disputeTransitions = map[models.DisputeStatus][]models.DisputeStatus{
	models.DisputeStatusOpen: {
		models.DisputeStatusUnderReview,
		models.DisputeStatusResolvedP1Win,
		models.DisputeStatusResolvedP2Win,
		models.DisputeStatusResolvedReplay,
		models.DisputeStatusResolvedNoAction,
		models.DisputeStatusClosedInvalid,
	},
	models.DisputeStatusUnderReview: {
		models.DisputeStatusResolvedP1Win,
		models.DisputeStatusResolvedP2Win,
		models.DisputeStatusResolvedReplay,
		models.DisputeStatusResolvedNoAction,
		models.DisputeStatusClosedInvalid,
	},
	models.DisputeStatusResolvedP1Win:    {},
	models.DisputeStatusResolvedP2Win:    {},
	models.DisputeStatusResolvedReplay:   {},
	models.DisputeStatusResolvedNoAction: {},
	models.DisputeStatusClosedInvalid:    {},
}

func isValidTournamentTransition(from, to models.TournamentStatus) bool {
	for _, allowed := range tournamentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func isValidMatchTransition(from, to models.MatchStatus) bool {
	for _, allowed := range matchTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func isValidDisputeTransition(from, to models.DisputeStatus) bool {
	for _, allowed := range disputeTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
