package handlers

import (
	"context"
	"net/http"

	"github.com/pwannenmacher/review-flow/internal/assignment"
	"github.com/pwannenmacher/review-flow/internal/service"
)

// AssignmentHandler exposes the questionnaire workflow commands
type AssignmentHandler struct {
	svc *service.AssignmentService
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{svc: svc}
}

// command decodes the body into C, lets bind fill in path parameters and
// runs the service call
func command[C any, R any](status int, run func(context.Context, C) (R, error), bind func(*http.Request, *C)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd C
		if err := decodeJSON(w, r, &cmd); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if bind != nil {
			bind(r, &cmd)
		}
		result, err := run(r.Context(), cmd)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		respondWithJSON(w, status, result)
	}
}

// GetAssignment returns the current state of an assignment
func (h *AssignmentHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetAssignment(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// ListEmployeeAssignments lists the assignment ids of an employee
func (h *AssignmentHandler) ListEmployeeAssignments(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListEmployeeAssignments(r.Context(), r.PathValue("employeeID"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondWithJSON(w, http.StatusOK, map[string][]string{"assignment_ids": ids})
}

// Routes registers all assignment endpoints on mux. Every endpoint requires
// an authenticated caller.
func (h *AssignmentHandler) Routes(mux *http.ServeMux, history *HistoryHandler, authenticate func(http.Handler) http.Handler) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authenticate(fn))
	}
	s := h.svc

	handle("GET /api/v1/assignments/{id}", h.GetAssignment)
	handle("GET /api/v1/assignments/{id}/events", history.ListEvents)
	handle("GET /api/v1/employees/{employeeID}/assignments", h.ListEmployeeAssignments)
	handle("GET /api/v1/review-edits/{editID}", history.GetReviewEdit)

	handle("POST /api/v1/assignments", command(http.StatusCreated, s.CreateAssignment, nil))
	handle("POST /api/v1/assignments/bulk", command(http.StatusOK, s.BulkCreateAssignments, nil))

	handle("POST /api/v1/assignments/{id}/initialization", command(http.StatusOK, s.StartInitialization,
		func(r *http.Request, c *service.StartInitializationCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("POST /api/v1/assignments/{id}/sections", command(http.StatusOK, s.AddCustomSection,
		func(r *http.Request, c *service.AddCustomSectionCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("DELETE /api/v1/assignments/{id}/sections/{sectionID}", command(http.StatusOK, s.RemoveCustomSection,
		func(r *http.Request, c *service.RemoveCustomSectionCommand) {
			c.AssignmentID, c.SectionID = r.PathValue("id"), r.PathValue("sectionID")
		}))

	handle("POST /api/v1/assignments/{id}/work/start", command(http.StatusOK, s.StartWork, bindParticipant))
	handle("POST /api/v1/assignments/{id}/work/complete", command(http.StatusOK, s.CompleteWork, bindParticipant))
	handle("POST /api/v1/assignments/{id}/submit/employee", command(http.StatusOK, s.SubmitEmployeeQuestionnaire, bindSubmit))
	handle("POST /api/v1/assignments/{id}/submit/manager", command(http.StatusOK, s.SubmitManagerQuestionnaire, bindSubmit))

	handle("POST /api/v1/assignments/{id}/review/initiate", command(http.StatusOK, s.InitiateReview,
		func(r *http.Request, c *service.AssignmentCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("POST /api/v1/assignments/{id}/review/finish", command(http.StatusOK, s.FinishReviewMeeting,
		func(r *http.Request, c *service.FinishReviewMeetingCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("POST /api/v1/assignments/{id}/review/confirm", command(http.StatusOK, s.ConfirmReviewOutcomeAsEmployee, bindConfirm))
	handle("POST /api/v1/assignments/{id}/review/sign-off", command(http.StatusOK, s.SignOffReviewOutcomeAsEmployee, bindConfirm))
	handle("POST /api/v1/assignments/{id}/review/answers", command(http.StatusAccepted, s.EditAnswerDuringReview,
		func(r *http.Request, c *service.EditAnswerCommand) { c.AssignmentID = r.PathValue("id") }))

	handle("POST /api/v1/assignments/{id}/finalize", command(http.StatusOK, s.FinalizeAsManager,
		func(r *http.Request, c *service.FinalizeCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("POST /api/v1/assignments/{id}/due-date", command(http.StatusOK, s.ExtendDueDate,
		func(r *http.Request, c *service.ExtendDueDateCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("POST /api/v1/assignments/{id}/withdraw", command(http.StatusOK, s.Withdraw,
		func(r *http.Request, c *service.WithdrawCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("POST /api/v1/assignments/{id}/reopen", command(http.StatusOK, s.ReopenQuestionnaire,
		func(r *http.Request, c *service.ReopenCommand) { c.AssignmentID = r.PathValue("id") }))

	handle("POST /api/v1/assignments/{id}/goals", command(http.StatusOK, s.AddGoal,
		func(r *http.Request, c *service.AddGoalCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("PATCH /api/v1/assignments/{id}/goals/{goalID}", command(http.StatusOK, s.ModifyGoal,
		func(r *http.Request, c *service.ModifyGoalCommand) {
			c.AssignmentID, c.GoalID = r.PathValue("id"), r.PathValue("goalID")
		}))
	handle("DELETE /api/v1/assignments/{id}/goals/{goalID}", command(http.StatusOK, s.DeleteGoal,
		func(r *http.Request, c *service.DeleteGoalCommand) {
			c.AssignmentID, c.GoalID = r.PathValue("id"), r.PathValue("goalID")
			if p := r.URL.Query().Get("participant"); p != "" {
				c.Participant = assignment.Participant(p)
			}
		}))

	handle("POST /api/v1/assignments/{id}/predecessor", command(http.StatusOK, s.LinkPredecessor,
		func(r *http.Request, c *service.LinkPredecessorCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("POST /api/v1/assignments/{id}/predecessor-ratings", command(http.StatusOK, s.RatePredecessorGoal,
		func(r *http.Request, c *service.RatePredecessorGoalCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("PATCH /api/v1/assignments/{id}/predecessor-ratings/{questionID}/{goalID}", command(http.StatusOK, s.ModifyPredecessorGoalRating,
		func(r *http.Request, c *service.ModifyPredecessorGoalRatingCommand) {
			c.AssignmentID, c.QuestionID, c.SourceGoalID = r.PathValue("id"), r.PathValue("questionID"), r.PathValue("goalID")
		}))

	handle("POST /api/v1/assignments/{id}/notes", command(http.StatusOK, s.AddNote,
		func(r *http.Request, c *service.AddNoteCommand) { c.AssignmentID = r.PathValue("id") }))
	handle("PUT /api/v1/assignments/{id}/notes/{noteID}", command(http.StatusOK, s.UpdateNote,
		func(r *http.Request, c *service.UpdateNoteCommand) {
			c.AssignmentID, c.NoteID = r.PathValue("id"), r.PathValue("noteID")
		}))
	handle("DELETE /api/v1/assignments/{id}/notes/{noteID}", command(http.StatusOK, s.DeleteNote,
		func(r *http.Request, c *service.DeleteNoteCommand) {
			c.AssignmentID, c.NoteID = r.PathValue("id"), r.PathValue("noteID")
		}))

	handle("POST /api/v1/assignments/{id}/feedback", command(http.StatusOK, s.LinkFeedback, bindFeedback))
	handle("DELETE /api/v1/assignments/{id}/feedback/{feedbackID}", command(http.StatusOK, s.UnlinkFeedback,
		func(r *http.Request, c *service.FeedbackLinkCommand) {
			bindFeedback(r, c)
			c.FeedbackID = r.PathValue("feedbackID")
			if q := r.URL.Query().Get("question_id"); q != "" {
				c.QuestionID = q
			}
		}))
}

func bindParticipant(r *http.Request, c *service.ParticipantCommand) { c.AssignmentID = r.PathValue("id") }
func bindSubmit(r *http.Request, c *service.SubmitCommand)           { c.AssignmentID = r.PathValue("id") }
func bindConfirm(r *http.Request, c *service.ConfirmOutcomeCommand)  { c.AssignmentID = r.PathValue("id") }
func bindFeedback(r *http.Request, c *service.FeedbackLinkCommand)   { c.AssignmentID = r.PathValue("id") }
