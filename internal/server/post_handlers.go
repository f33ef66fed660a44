package server

import (
	"strconv"

	"blogpage/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Home lists every post, newest first, PostsPerPage at a time.
func (s *Server) Home(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), c.Query("page"))
	if err != nil {
		return err
	}
	return render(c, fiber.StatusOK, "blog/home", fiber.Map{
		"Title":   "Home",
		"Page":    page,
		"PageURL": "/",
	})
}

// LatestPosts shows the newest posts digest.
func (s *Server) LatestPosts(c *fiber.Ctx) error {
	posts, err := s.postService.LatestPosts(c.UserContext())
	if err != nil {
		return err
	}
	return render(c, fiber.StatusOK, "blog/latest", fiber.Map{
		"Title": "Latest posts",
		"Posts": posts,
	})
}

// UserPosts lists the posts of one author. An unknown username is a 404.
func (s *Server) UserPosts(c *fiber.Ctx) error {
	author, page, err := s.postService.ListPostsByAuthor(c.UserContext(), c.Params("username"), c.Query("page"))
	if err != nil {
		return err
	}
	return render(c, fiber.StatusOK, "blog/user_posts", fiber.Map{
		"Title":   "Posts by " + author.Username,
		"Author":  author,
		"Page":    page,
		"PageURL": "/allposts/" + author.Username + "/",
	})
}

func (s *Server) PostDetail(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "Post")
	if err != nil {
		return err
	}
	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return err
	}
	return render(c, fiber.StatusOK, "blog/detail", fiber.Map{
		"Title":     post.Title,
		"Post":      post,
		"CanModify": s.postService.CanModify(actorID(c), post),
	})
}

func (s *Server) NewPostForm(c *fiber.Ctx) error {
	return renderPostForm(c, fiber.StatusOK, "/post/new/", service.PostInput{}, nil)
}

// CreatePost stores a post authored by the logged-in user and redirects to it.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.PostInput
	if err := c.BodyParser(&in); err != nil {
		return renderPostForm(c, fiber.StatusUnprocessableEntity, "/post/new/", in,
			map[string]string{"__all__": "Invalid form submission"})
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		ActorID:   actorID(c),
		PostInput: in,
	})
	if fields := formErrors(err); fields != nil {
		return renderPostForm(c, fiber.StatusUnprocessableEntity, "/post/new/", in, fields)
	}
	if err != nil {
		return err
	}
	return c.Redirect(postURL(post.ID), fiber.StatusFound)
}

func (s *Server) EditPostForm(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "Post")
	if err != nil {
		return err
	}
	post, err := s.postService.GetPostForEdit(c.UserContext(), actorID(c), id, "update")
	if err != nil {
		return err
	}
	return renderPostForm(c, fiber.StatusOK, postURL(id)+"update/",
		service.PostInput{Title: post.Title, Content: post.Content}, nil)
}

// UpdatePost saves new title and content when the acting user owns the post.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "Post")
	if err != nil {
		return err
	}
	action := postURL(id) + "update/"

	var in service.PostInput
	if err := c.BodyParser(&in); err != nil {
		return renderPostForm(c, fiber.StatusUnprocessableEntity, action, in,
			map[string]string{"__all__": "Invalid form submission"})
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		ActorID:   actorID(c),
		PostID:    id,
		PostInput: in,
	})
	if fields := formErrors(err); fields != nil {
		return renderPostForm(c, fiber.StatusUnprocessableEntity, action, in, fields)
	}
	if err != nil {
		return err
	}
	return c.Redirect(postURL(post.ID), fiber.StatusFound)
}

func (s *Server) ConfirmDeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "Post")
	if err != nil {
		return err
	}
	post, err := s.postService.GetPostForEdit(c.UserContext(), actorID(c), id, "delete")
	if err != nil {
		return err
	}
	return render(c, fiber.StatusOK, "blog/confirm_delete", fiber.Map{
		"Title": "Delete post",
		"Post":  post,
	})
}

// DeletePost removes the post when the acting user owns it and returns to the list.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "Post")
	if err != nil {
		return err
	}
	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		ActorID: actorID(c),
		PostID:  id,
	}); err != nil {
		return err
	}
	setFlash(c, "success", "Post deleted")
	return c.Redirect("/", fiber.StatusFound)
}

func renderPostForm(c *fiber.Ctx, status int, action string, form service.PostInput, errs map[string]string) error {
	if errs == nil {
		errs = map[string]string{}
	}
	return render(c, status, "blog/form", fiber.Map{
		"Title":  "Blog Post",
		"Action": action,
		"Form":   form,
		"Errors": errs,
	})
}

func postURL(id uint) string {
	return "/post/" + strconv.FormatUint(uint64(id), 10) + "/"
}
