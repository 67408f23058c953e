package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"community/api/internal/auth"
	"community/api/internal/authpw"
	"community/api/internal/config"
	"community/api/internal/export"
	"community/api/internal/moderation"
	"community/api/internal/rbac"
	"community/api/internal/search"
	"community/api/internal/store"
	"community/api/internal/util"
)

const (
	maxReportReason  = 500
	maxReportExcerpt = 280
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

type ReportInput struct {
	ReplyID string `json:"replyId"`
	Reason  string `json:"reason"`
}

type SearchInput struct {
	Text     string
	Category string
	Type     string
	Limit    int
	Offset   int
}

// DataStore is the persistence a Service runs on. PostgresStore, MongoStore
// and MemoryStore all satisfy it.
type DataStore interface {
	ListPostsByCategory(context.Context, string) ([]store.Post, error)
	AllPosts(context.Context) ([]store.Post, error)
	GetPost(context.Context, string) (store.Post, error)
	InsertPost(context.Context, store.Post) error
	PrependReply(context.Context, string, store.Reply) error
	IncrementPostVote(context.Context, string, store.Direction) (store.VoteCounts, error)
	IncrementReplyVote(context.Context, string, string, store.Direction) (store.VoteCounts, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	CreateUser(context.Context, store.User) error
	Ping(ctx context.Context) error
}

type searchService interface {
	Search(context.Context, search.Query) search.Response
	IndexPost(store.Post)
	IndexReply(store.Post, store.Reply)
	ReindexAll(context.Context, search.PostLoader) (int, error)
}

type exportService interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type reportService interface {
	Submit(context.Context, moderation.Report) error
	Pending(context.Context, int) ([]moderation.Report, error)
}

// Dependencies are the optional collaborators of Service. Nil fields get
// in-process defaults built on the data store.
type Dependencies struct {
	Search     searchService
	Export     exportService
	Moderation reportService
}

type Service struct {
	cfg     config.Config
	store   DataStore
	auth    *authpw.Service
	search  searchService
	exports exportService
	reports reportService
	now     func() time.Time
}

func New(cfg config.Config, dataStore DataStore, deps Dependencies) *Service {
	s := &Service{
		cfg:     cfg,
		store:   dataStore,
		auth:    authpw.NewService(dataStore),
		search:  deps.Search,
		exports: deps.Export,
		reports: deps.Moderation,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	if s.search == nil {
		s.search = search.NewService(nil, search.NewScan(dataStore))
	}
	if s.exports == nil {
		s.exports = export.NewService(dataStore, nil)
	}
	if s.reports == nil {
		s.reports = moderation.NewService(nil, nil, "")
	}
	return s
}

// storeError turns a store failure into the error the caller sees. Missing
// posts and replies become 404s; anything else, cancellation included, is
// logged and reported as storage trouble.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrReplyNotFound):
		return notFound("reply")
	case errors.Is(err, store.ErrNotFound):
		return notFound("post")
	default:
		return storageUnavailable(op, err)
	}
}

func validationError(err error) error {
	var invalid *store.InvalidDocumentError
	if errors.As(err, &invalid) {
		return invalidDocument(invalid.Field, invalid.Error())
	}
	return err
}

func (s *Service) ListChannel(ctx context.Context, category string) ([]store.Post, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return []store.Post{}, nil
	}
	items, err := s.store.ListPostsByCategory(ctx, category)
	if err != nil {
		return nil, storeError("list channel", err)
	}
	return items, nil
}

func (s *Service) CreatePost(ctx context.Context, draft store.PostDraft) (store.Post, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return store.Post{}, validationError(err)
	}
	if draft.Image != nil && s.cfg.MaxImageBytes > 0 && len(*draft.Image) > s.cfg.MaxImageBytes {
		return store.Post{}, invalidDocument("image", fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxImageBytes))
	}

	post := store.Post{
		ID:        util.NewID("post"),
		Author:    draft.Author,
		Role:      draft.Role,
		Content:   draft.Content,
		Image:     draft.Image,
		Category:  draft.Category,
		Replies:   []store.Reply{},
		Timestamp: s.now(),
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		return store.Post{}, storeError("create post", err)
	}
	s.search.IndexPost(post)
	return post, nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (store.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return store.Post{}, storeError("get post", err)
	}
	return post, nil
}

// AddReply looks the post up before validating, so an unknown post is
// reported as missing even when the draft is also invalid.
func (s *Service) AddReply(ctx context.Context, postID string, draft store.ReplyDraft) (store.Reply, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return store.Reply{}, storeError("add reply", err)
	}

	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return store.Reply{}, validationError(err)
	}

	reply := store.Reply{
		ID:        util.NewID("rpl"),
		Author:    draft.Author,
		Role:      draft.Role,
		Content:   draft.Content,
		Timestamp: s.now(),
	}
	if err := s.store.PrependReply(ctx, post.ID, reply); err != nil {
		return store.Reply{}, storeError("add reply", err)
	}
	s.search.IndexReply(post, reply)
	return reply, nil
}

// CastVote adds one vote to a post, or to one of its replies when replyID is
// set, and returns the target's counters after the increment.
func (s *Service) CastVote(ctx context.Context, postID, replyID, direction string) (store.VoteCounts, error) {
	dir, err := store.ParseDirection(direction)
	if err != nil {
		return store.VoteCounts{}, validationError(err)
	}

	replyID = strings.TrimSpace(replyID)
	var counts store.VoteCounts
	if replyID == "" {
		counts, err = s.store.IncrementPostVote(ctx, postID, dir)
	} else {
		counts, err = s.store.IncrementReplyVote(ctx, postID, replyID, dir)
	}
	if err != nil {
		return store.VoteCounts{}, storeError("cast vote", err)
	}
	return counts, nil
}

func (s *Service) ReportContent(ctx context.Context, session Session, postID string, input ReportInput) (moderation.Report, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return moderation.Report{}, storeError("report", err)
	}

	replyID := strings.TrimSpace(input.ReplyID)
	excerpt := post.Content
	if replyID != "" {
		idx := post.FindReply(replyID)
		if idx < 0 {
			return moderation.Report{}, notFound("reply")
		}
		excerpt = post.Replies[idx].Content
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "unspecified"
	}
	if utf8.RuneCountInString(reason) > maxReportReason {
		return moderation.Report{}, invalidDocument("reason", fmt.Sprintf("reason exceeds %d characters", maxReportReason))
	}

	report := moderation.Report{
		ID:         util.NewID("rpt"),
		PostID:     post.ID,
		ReplyID:    replyID,
		Category:   post.Category,
		Reason:     reason,
		ReporterID: session.UserID,
		Reporter:   session.UserName,
		Excerpt:    truncateRunes(excerpt, maxReportExcerpt),
		CreatedAt:  s.now(),
	}
	if err := s.reports.Submit(ctx, report); err != nil {
		if errors.Is(err, moderation.ErrDuplicateReport) {
			return moderation.Report{}, domainError(http.StatusConflict, "DUPLICATE_REPORT", "You already reported this", nil)
		}
		return moderation.Report{}, storageUnavailable("report", err)
	}
	return report, nil
}

func (s *Service) PendingReports(ctx context.Context, session Session, limit int) ([]moderation.Report, error) {
	if !s.Can(session.Role, rbac.ActionReview) {
		return nil, forbidden(string(rbac.ActionReview))
	}
	reports, err := s.reports.Pending(ctx, limit)
	if err != nil {
		return nil, storageUnavailable("pending reports", err)
	}
	return reports, nil
}

func (s *Service) Search(ctx context.Context, input SearchInput) (search.Response, error) {
	filter := search.ResultType(strings.ToLower(strings.TrimSpace(input.Type)))
	if filter != "" && filter != search.ResultPost && filter != search.ResultReply {
		return search.Response{}, invalidDocument("type", "type must be 'post' or 'reply'")
	}
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.search.Search(ctx, search.Query{
		Text:       strings.TrimSpace(input.Text),
		Category:   strings.TrimSpace(input.Category),
		FilterType: filter,
		Limit:      limit,
		Offset:     input.Offset,
	}), nil
}

func (s *Service) Reindex(ctx context.Context, session Session) (int, error) {
	if !s.Can(session.Role, rbac.ActionReindex) {
		return 0, forbidden(string(rbac.ActionReindex))
	}
	count, err := s.search.ReindexAll(ctx, s.store)
	if err != nil {
		log.Printf("search: reindex: %v", err)
		return 0, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is temporarily unavailable", nil)
	}
	return count, nil
}

func (s *Service) ExportChannel(ctx context.Context, session Session, category, format string, archive bool) (*export.Result, error) {
	if !s.Can(session.Role, rbac.ActionExport) {
		return nil, forbidden(string(rbac.ActionExport))
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, invalidDocument("category", "category is required")
	}
	parsed, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, invalidDocument("format", "format must be one of html, json, pdf")
	}

	result, err := s.exports.Export(ctx, export.Request{
		Category:    category,
		Format:      parsed,
		Archive:     archive,
		RequestedBy: session.UserName,
	})
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
	case errors.Is(err, export.ErrArchiveUnavailable):
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Export archive is not configured", nil)
	default:
		return nil, storageUnavailable("export channel", err)
	}
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (store.User, error) {
	user, err := s.auth.SignUp(ctx, req)
	if err == nil {
		return user, nil
	}
	var validation *authpw.ValidationError
	switch {
	case errors.As(err, &validation):
		return store.User{}, invalidDocument(validation.Field, validation.Message)
	case errors.Is(err, authpw.ErrEmailTaken):
		return store.User{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
	default:
		return store.User{}, storageUnavailable("sign up", err)
	}
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	user, err := s.auth.SignIn(ctx, req)
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	if err != nil {
		return Session{}, storageUnavailable("sign in", err)
	}
	return s.issueSession(user)
}

func (s *Service) issueSession(user store.User) (Session, error) {
	jti := util.NewID("jti")
	claims := auth.NewClaims(user.ID, user.DisplayName, user.Role, jti, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       jti,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SessionFromToken trusts the signed claims; tokens are not tracked server side.
func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Subject,
		UserName:  claims.Name,
		Role:      claims.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "…"
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
