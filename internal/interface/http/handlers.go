package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursehub/coursehub/internal/application/command"
	"github.com/coursehub/coursehub/internal/application/query"
	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every store check. Any failed check yields 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"status": "healthy",
			"uptime": s.Uptime().Round(time.Second).String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady fails only when a critical store is down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      user.Public `json:"user"`
}

// handleRegister handles POST /api/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.RegisterUser.Handle(r.Context(), command.RegisterUserCommand{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res.User)
}

// handleLogin handles POST /api/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Login.Handle(r.Context(), command.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      res.User,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createCourseRequest struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ShortDescription string        `json:"shortDescription"`
	Description      string        `json:"description"`
	ImageURL         string        `json:"imageUrl"`
	BannerURL        string        `json:"bannerUrl"`
	Units            []course.Unit `json:"units"`
}

// handleListCourses handles GET /api/courses. Signed-in callers get their
// mirrored progress on each item.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	q := query.ListCoursesQuery{}
	if p := principalFromContext(r.Context()); p != nil {
		q.UserID = p.UserID
	}

	items, err := s.deps.ListCourses.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONList(w, r, items, len(items))
}

// handleCreateCourse handles POST /api/courses
func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.deps.CreateCourse.Handle(r.Context(), command.CreateCourseCommand{
		ID:               req.ID,
		Name:             req.Name,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		ImageURL:         req.ImageURL,
		BannerURL:        req.BannerURL,
		Units:            req.Units,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

// handleGetCourse handles GET /api/courses/{courseID}
func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	detail, err := s.deps.GetCourseDetail.Handle(r.Context(), query.GetCourseDetailQuery{
		CourseID: chi.URLParam(r, "courseID"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

// handleGetCourseRating handles GET /api/courses/{courseID}/rating
func (s *Server) handleGetCourseRating(w http.ResponseWriter, r *http.Request) {
	rating, err := s.deps.GetCourseRating.Handle(r.Context(), query.GetCourseRatingQuery{
		CourseID: chi.URLParam(r, "courseID"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rating)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createCommentRequest struct {
	Content string `json:"content"`
	Rating  int    `json:"rating"`
}

type reactionRequest struct {
	Type string `json:"type"`
}

type replyRequest struct {
	Content string `json:"content"`
}

type voteResponse struct {
	CommentID string      `json:"commentId"`
	Vote      social.Vote `json:"vote"`
}

// handleGetCourseComments handles GET /api/courses/{courseID}/comments
func (s *Server) handleGetCourseComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.deps.GetCourseComments.Handle(r.Context(), query.GetCourseCommentsQuery{
		CourseID: chi.URLParam(r, "courseID"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONList(w, r, comments, len(comments))
}

// handleCreateComment handles POST /api/courses/{courseID}/comments
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.CreateComment.Handle(r.Context(), command.CreateCommentCommand{
		UserID:   principalFromContext(r.Context()).UserID,
		CourseID: chi.URLParam(r, "courseID"),
		Content:  req.Content,
		Rating:   req.Rating,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res.Comment)
}

// handleGetMyComments handles GET /api/me/comments
func (s *Server) handleGetMyComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.deps.GetUserComments.Handle(r.Context(), query.GetUserCommentsQuery{
		UserID: principalFromContext(r.Context()).UserID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONList(w, r, comments, len(comments))
}

// handleReactToComment handles POST /api/comments/{commentID}/reactions
func (s *Server) handleReactToComment(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	commentID := chi.URLParam(r, "commentID")
	err := s.deps.Interactions.React(r.Context(), command.ReactToCommentCommand{
		UserID:    principalFromContext(r.Context()).UserID,
		CommentID: commentID,
		Type:      req.Type,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"commentId": commentID, "type": req.Type})
}

// handleReplyToComment handles POST /api/comments/{commentID}/replies
func (s *Server) handleReplyToComment(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	reply, err := s.deps.Interactions.Reply(r.Context(), command.ReplyToCommentCommand{
		UserID:    principalFromContext(r.Context()).UserID,
		CommentID: chi.URLParam(r, "commentID"),
		Content:   req.Content,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, reply)
}

// handleLikeComment handles POST /api/comments/{commentID}/like
func (s *Server) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	s.vote(w, r, social.VoteLike)
}

// handleDislikeComment handles POST /api/comments/{commentID}/dislike
func (s *Server) handleDislikeComment(w http.ResponseWriter, r *http.Request) {
	s.vote(w, r, social.VoteDislike)
}

func (s *Server) vote(w http.ResponseWriter, r *http.Request, vote social.Vote) {
	commentID := chi.URLParam(r, "commentID")
	err := s.deps.Interactions.Vote(r.Context(), command.VoteCommentCommand{
		UserID:    principalFromContext(r.Context()).UserID,
		CommentID: commentID,
		Vote:      vote,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, voteResponse{CommentID: commentID, Vote: vote})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type progressRequest struct {
	CompletedLessons *int `json:"completedLessons"`
}

// progressResponse omits warnings: partial mirror writes are logged and
// counted server-side only.
type progressResponse struct {
	UserID    string    `json:"userId"`
	CourseID  string    `json:"courseId"`
	Progress  float64   `json:"progress"`
	Status    string    `json:"status"`
	StartDate time.Time `json:"startDate"`
}

// handleUpdateProgress handles POST /api/courses/{courseID}/progress
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CompletedLessons == nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", "completedLessons is required")
		return
	}

	res, err := s.deps.UpdateProgress.Handle(r.Context(), command.UpdateProgressCommand{
		UserID:           principalFromContext(r.Context()).UserID,
		CourseID:         chi.URLParam(r, "courseID"),
		CompletedLessons: *req.CompletedLessons,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, progressResponse{
		UserID:    res.UserID,
		CourseID:  res.CourseID,
		Progress:  res.Progress,
		Status:    res.Status.String(),
		StartDate: res.StartDate,
	})
}

// handleGetCourseProgress handles GET /api/courses/{courseID}/progress
func (s *Server) handleGetCourseProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.deps.GetCourseProgress.Handle(r.Context(), query.GetCourseProgressQuery{
		UserID:   principalFromContext(r.Context()).UserID,
		CourseID: chi.URLParam(r, "courseID"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, progress)
}

// handleGetMyCourses handles GET /api/me/courses
func (s *Server) handleGetMyCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.deps.GetUserCourses.Handle(r.Context(), query.GetUserCoursesQuery{
		UserID: principalFromContext(r.Context()).UserID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONList(w, r, courses, len(courses))
}
