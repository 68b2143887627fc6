package assignment

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"unicode/utf8"
)

// MaxNoteLength is the maximum rune count of a note
const MaxNoteLength = 4000

func (a *Assignment) ensureInReview(what string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if a.st.WorkflowState != StateInReview {
		return ErrInvalidTransition.With("%s is only possible during the review meeting", what)
	}
	return nil
}

func validateNoteContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrNoteInvalid.With("note content is required")
	}
	if utf8.RuneCountInString(content) > MaxNoteLength {
		return "", ErrNoteInvalid.With("note content exceeds %d characters", MaxNoteLength)
	}
	return content, nil
}

// AddInReviewNote adds a note during the review meeting
func (a *Assignment) AddInReviewNote(noteID, content, sectionID, author string) error {
	if err := a.ensureInReview("adding notes"); err != nil {
		return err
	}
	if strings.TrimSpace(noteID) == "" {
		return ErrNoteInvalid.With("note id is required")
	}
	if a.noteIndex(noteID) >= 0 {
		return ErrNoteInvalid.With("note %s already exists", noteID)
	}
	content, err := validateNoteContent(content)
	if err != nil {
		return err
	}
	a.raise(NoteAdded{Note: InReviewNote{
		ID:               noteID,
		Content:          content,
		SectionID:        sectionID,
		AuthorEmployeeID: author,
	}})
	return nil
}

// UpdateInReviewNote replaces the content of a note
func (a *Assignment) UpdateInReviewNote(noteID, content, editor string) error {
	if err := a.ensureInReview("updating notes"); err != nil {
		return err
	}
	if a.noteIndex(noteID) < 0 {
		return ErrNoteNotFound.With("note %s not found", noteID)
	}
	content, err := validateNoteContent(content)
	if err != nil {
		return err
	}
	a.raise(NoteUpdated{NoteID: noteID, Content: content, By: editor})
	return nil
}

// DeleteInReviewNote removes a note permanently
func (a *Assignment) DeleteInReviewNote(noteID, deleter string) error {
	if err := a.ensureInReview("deleting notes"); err != nil {
		return err
	}
	if a.noteIndex(noteID) < 0 {
		return ErrNoteNotFound.With("note %s not found", noteID)
	}
	a.raise(NoteDeleted{NoteID: noteID, By: deleter})
	return nil
}

// AnswerDigest returns the digest stored in place of an edited answer
func AnswerDigest(answer string) string {
	sum := sha256.Sum256([]byte(answer))
	return hex.EncodeToString(sum[:])
}

// EditAnswerAsManagerDuringReview records the audit fact for an answer the
// manager changes during the review meeting. The answer value is written to
// the response record separately.
func (a *Assignment) EditAnswerAsManagerDuringReview(editID, sectionID, questionID string, originalRole Participant, newAnswer, by string) error {
	if err := a.ensureInReview("editing answers"); err != nil {
		return err
	}
	if strings.TrimSpace(editID) == "" || strings.TrimSpace(questionID) == "" {
		return ErrInvalidAssignment.With("edit id and question id are required")
	}
	if !originalRole.Valid() {
		return ErrInvalidAssignment.With("unknown original role %q", originalRole)
	}
	if a.HasReviewEdit(editID) {
		return ErrDuplicateEdit.With("review edit %s already recorded", editID)
	}
	a.raise(ReviewAnswerEdited{Record: ReviewEditRecord{
		EditID:       editID,
		SectionID:    sectionID,
		QuestionID:   questionID,
		OriginalRole: originalRole,
		EditedBy:     by,
		AnswerDigest: AnswerDigest(newAnswer),
	}})
	return nil
}

// HasReviewEdit reports whether the audit fact for editID exists
func (a *Assignment) HasReviewEdit(editID string) bool {
	return slices.ContainsFunc(a.st.ReviewEdits, func(r ReviewEditRecord) bool { return r.EditID == editID })
}

// LinkFeedback attaches an external feedback record to a question
func (a *Assignment) LinkFeedback(questionID, feedbackID, by string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if a.st.WorkflowState == StateAssigned {
		return ErrInvalidTransition.With("feedback can be linked once the questionnaire is initialized")
	}
	if strings.TrimSpace(questionID) == "" || strings.TrimSpace(feedbackID) == "" {
		return ErrFeedbackInvalid.With("question id and feedback id are required")
	}
	if slices.Contains(a.st.FeedbackLinks[questionID], feedbackID) {
		return ErrFeedbackInvalid.With("feedback %s is already linked to question %s", feedbackID, questionID)
	}
	a.raise(FeedbackLinked{QuestionID: questionID, FeedbackID: feedbackID, By: by})
	return nil
}

// UnlinkFeedback detaches a feedback record from a question
func (a *Assignment) UnlinkFeedback(questionID, feedbackID, by string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if !slices.Contains(a.st.FeedbackLinks[questionID], feedbackID) {
		return ErrFeedbackInvalid.With("feedback %s is not linked to question %s", feedbackID, questionID)
	}
	a.raise(FeedbackUnlinked{QuestionID: questionID, FeedbackID: feedbackID, By: by})
	return nil
}
