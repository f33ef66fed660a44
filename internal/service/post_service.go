package service

import (
	"context"
	"strings"

	"blogpage/internal/models"
	"blogpage/internal/observability"
	"blogpage/internal/repository"
	"blogpage/internal/validation"
)

// PostService implements listing and author-only mutation of posts.
type PostService struct {
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	canModify ModifyPolicy
}

// PostInput is the editable part of a post, as submitted by a form.
type PostInput struct {
	Title   string `form:"title" validate:"required,max=100"`
	Content string `form:"content" validate:"required"`
}

type CreatePostInput struct {
	ActorID uint
	PostInput
}

type UpdatePostInput struct {
	ActorID uint
	PostID  uint
	PostInput
}

type DeletePostInput struct {
	ActorID uint
	PostID  uint
}

// NewPostService wires the post rules. A nil canModify falls back to AuthorOnly.
func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	canModify ModifyPolicy,
) *PostService {
	if canModify == nil {
		canModify = AuthorOnly
	}
	return &PostService{
		postRepo:  postRepo,
		userRepo:  userRepo,
		canModify: canModify,
	}
}

// ListPosts returns one page of all posts, newest first.
func (s *PostService) ListPosts(ctx context.Context, page string) (*Page[models.Post], error) {
	total, err := s.postRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	number, err := resolvePage(page, total, PostsPerPage)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.List(ctx, PostsPerPage, (number-1)*PostsPerPage)
	if err != nil {
		return nil, err
	}
	return newPage(posts, number, PostsPerPage, total), nil
}

// ListPostsByAuthor returns one page of the posts written by username.
// An unknown username is a NotFound.
func (s *PostService) ListPostsByAuthor(ctx context.Context, username, page string) (*models.User, *Page[models.Post], error) {
	author, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	total, err := s.postRepo.CountByAuthor(ctx, author.ID)
	if err != nil {
		return nil, nil, err
	}
	number, err := resolvePage(page, total, PostsPerPage)
	if err != nil {
		return nil, nil, err
	}
	posts, err := s.postRepo.ListByAuthor(ctx, author.ID, PostsPerPage, (number-1)*PostsPerPage)
	if err != nil {
		return nil, nil, err
	}
	return author, newPage(posts, number, PostsPerPage, total), nil
}

// LatestPosts returns the newest LatestPostsCount posts.
func (s *PostService) LatestPosts(ctx context.Context) ([]models.Post, error) {
	return s.postRepo.Latest(ctx, LatestPostsCount)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// CreatePost persists a new post authored by the actor. Any author carried by
// the caller is ignored.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "PostService", "CreatePost")
	defer func() { finish(err) }()

	if in.ActorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	fields, err := cleanPostInput(&in.PostInput)
	if err != nil {
		return nil, err
	}

	post = &models.Post{
		Title:    fields.Title,
		Content:  fields.Content,
		AuthorID: in.ActorID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	observability.PostMutations.WithLabelValues("create").Inc()
	return post, nil
}

// CanModify reports whether the actor may edit or delete post, for showing
// the edit controls. It records nothing.
func (s *PostService) CanModify(actorID uint, post *models.Post) bool {
	return s.canModify(actorID, post)
}

// GetPostForEdit loads a post the actor is allowed to change, for the edit and
// delete-confirmation pages.
func (s *PostService) GetPostForEdit(ctx context.Context, actorID, postID uint, operation string) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !authorize(s.canModify, actorID, post, "post", operation) {
		return nil, models.NewForbiddenError("You can only " + operation + " your own posts")
	}
	return post, nil
}

// UpdatePost replaces title and content. The author is re-stamped to the actor
// and the posted date is kept.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (post *models.Post, err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "PostService", "UpdatePost")
	defer func() { finish(err) }()

	post, err = s.GetPostForEdit(ctx, in.ActorID, in.PostID, "update")
	if err != nil {
		return nil, err
	}
	fields, err := cleanPostInput(&in.PostInput)
	if err != nil {
		return nil, err
	}

	post.Title = fields.Title
	post.Content = fields.Content
	post.AuthorID = in.ActorID
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	observability.PostMutations.WithLabelValues("update").Inc()
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "PostService", "DeletePost")
	defer func() { finish(err) }()

	if _, err = s.GetPostForEdit(ctx, in.ActorID, in.PostID, "delete"); err != nil {
		return err
	}
	if err = s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}
	observability.PostMutations.WithLabelValues("delete").Inc()
	return nil
}

// cleanPostInput trims the submitted fields in place and validates them.
func cleanPostInput(in *PostInput) (*PostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if fields := validation.Struct(in); fields != nil {
		return nil, models.NewFieldValidationError(fields)
	}
	return in, nil
}
