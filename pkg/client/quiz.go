package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultQuestionTypes are the question types requested when none are given.
var DefaultQuestionTypes = []string{QuestionMultipleChoice, QuestionTrueFalse}

// GenerateQuiz asks the quiz service to write a quiz about a document.
func (c *Client) GenerateQuiz(ctx context.Context, req QuizRequest) (*GeneratedQuiz, error) {
	if req.DocumentID == "" {
		return nil, errors.New("document id is required")
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = 5
	}
	if len(req.QuestionTypes) == 0 {
		req.QuestionTypes = DefaultQuestionTypes
	}

	out := &GeneratedQuiz{}
	if err := c.doJSON(ctx, http.MethodPost, ServiceQuiz, "/api/quiz/generate", nil, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Quiz returns a quiz without its answers.
func (c *Client) Quiz(ctx context.Context, id string) (*Quiz, error) {
	if id == "" {
		return nil, errors.New("quiz id is required")
	}

	out := &Quiz{}
	if err := c.doJSON(ctx, http.MethodGet, ServiceQuiz, "/api/quiz/"+url.PathEscape(id), nil, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitQuiz submits answers for grading.
func (c *Client) SubmitQuiz(ctx context.Context, id string, answers []Answer) (*QuizResult, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.New("quiz id is required")
	}

	in := struct {
		QuizID  string   `json:"quiz_id"`
		UserID  string   `json:"user_id"`
		Answers []Answer `json:"answers"`
	}{
		QuizID:  id,
		UserID:  userID,
		Answers: answers,
	}
	if in.Answers == nil {
		in.Answers = []Answer{}
	}

	out := &QuizResult{}
	path := "/api/quiz/" + url.PathEscape(id) + "/submit"
	if err := c.doJSON(ctx, http.MethodPost, ServiceQuiz, path, nil, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// QuizResults returns the session user's latest graded attempt at a quiz.
func (c *Client) QuizResults(ctx context.Context, id string) (*QuizResult, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.New("quiz id is required")
	}

	out := &QuizResult{}
	path := "/api/quiz/" + url.PathEscape(id) + "/results"
	if err := c.doJSON(ctx, http.MethodGet, ServiceQuiz, path, url.Values{"user_id": {userID}}, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// QuizHistory returns up to limit of the session user's quiz attempts, newest
// first. A zero limit uses the service default.
func (c *Client) QuizHistory(ctx context.Context, limit uint) ([]QuizAttempt, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}

	query := url.Values{"user_id": {userID}}
	if limit > 0 {
		query.Set("limit", strconv.FormatUint(uint64(limit), 10))
	}

	var out []QuizAttempt
	if err := c.doJSON(ctx, http.MethodGet, ServiceQuiz, "/api/quiz/history", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteQuiz deletes a quiz.
func (c *Client) DeleteQuiz(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("quiz id is required")
	}

	return c.doJSON(ctx, http.MethodDelete, ServiceQuiz, "/api/quiz/"+url.PathEscape(id), nil, nil, &statusResponse{})
}
