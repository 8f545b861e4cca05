package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"postflow/internal/http/middleware"
	"postflow/internal/model"
	"postflow/internal/service"
	"postflow/internal/storage"
)

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

func postID(c *fiber.Ctx) (string, error) {
	id := c.Params("postId")
	if _, err := uuid.Parse(id); err != nil {
		return "", badRequest("VALIDATION_ERROR", "invalid post id")
	}
	return id, nil
}

func actor(c *fiber.Ctx) service.Actor {
	claims := middleware.ClaimsFrom(c)
	return service.Actor{UserID: claims.UserID, Role: claims.Role}
}

func pagination(c *fiber.Ctx) (int, int, error) {
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		return 0, 0, badRequest("INVALID_LIMIT", "invalid limit")
	}
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		return 0, 0, badRequest("INVALID_OFFSET", "invalid offset")
	}
	return limit, offset, nil
}

// splitList splits a form value on commas and whitespace. Empty input gives nil.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// UploadPost stores the multipart file in tmpDir and hands it to the upload
// pipeline, which removes it when done.
//
// @Summary   Upload an image and generate a post
// @Tags      posts
// @Accept    multipart/form-data
// @Produce   json
// @Security  BearerAuth
// @Param     file        formData file   true  "image (jpeg, png, gif; max 5 MB)"
// @Param     platform    formData string true  "LinkedIn, Twitter or Facebook"
// @Param     tone        formData string false "caption tone"
// @Param     audience    formData string false "target audience"
// @Param     guidelines  formData string false "brand guidelines"
// @Param     description formData string false "context for the caption"
// @Param     provider    formData string false "openai or gemini"
// @Param     caption     formData string false "caption override"
// @Param     tags        formData string false "comma separated tags override"
// @Success   201 {object} model.Post
// @Failure   400 {object} errorPayload
// @Failure   403 {object} errorPayload
// @Failure   500 {object} errorPayload
// @Router    /api/posts/upload [post]
func UploadPost(svc service.UploadService, tmpDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return badRequest("FILE_REQUIRED", "file is required")
		}

		if err := os.MkdirAll(tmpDir, 0o750); err != nil {
			return fmt.Errorf("create tmp dir: %w", err)
		}
		ext := filepath.Ext(fh.Filename)
		if !safeExt.MatchString(ext) {
			ext = ""
		}
		tmp := filepath.Join(tmpDir, uuid.NewString()+ext)
		if err := c.SaveFile(fh, tmp); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("save upload: %w", err)
		}

		in := service.UploadInput{
			UserID:      middleware.ClaimsFrom(c).UserID,
			TempPath:    tmp,
			FileName:    filepath.Base(fh.Filename),
			Platform:    c.FormValue("platform"),
			Provider:    c.FormValue("provider"),
			Tone:        c.FormValue("tone"),
			Audience:    c.FormValue("audience"),
			Guidelines:  c.FormValue("guidelines"),
			Description: c.FormValue("description"),
			Tags:        splitList(c.FormValue("tags")),
		}
		if caption := c.FormValue("caption"); caption != "" {
			in.Caption = &caption
		}

		post, err := svc.Upload(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(post)
	}
}

// ListPosts returns the caller's posts, newest first.
//
// @Summary   List my posts
// @Tags      posts
// @Produce   json
// @Security  BearerAuth
// @Param     limit  query int false "page size" default(10)
// @Param     offset query int false "offset" default(0)
// @Success   200 {object} service.PostListResult
// @Router    /api/posts [get]
func ListPosts(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, err := pagination(c)
		if err != nil {
			return err
		}
		res, err := svc.ListMine(c.UserContext(), middleware.ClaimsFrom(c).UserID, limit, offset)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// ReviewQueue lists posts waiting in a review status (pending by default).
//
// @Summary   Review queue
// @Tags      posts
// @Produce   json
// @Security  BearerAuth
// @Param     status query string false "post status" default(pending)
// @Param     limit  query int    false "page size" default(10)
// @Param     offset query int    false "offset" default(0)
// @Success   200 {object} service.PostListResult
// @Router    /api/posts/queue [get]
func ReviewQueue(svc service.WorkflowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, err := pagination(c)
		if err != nil {
			return err
		}
		res, err := svc.Queue(c.UserContext(), model.PostStatus(c.Query("status")), limit, offset)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// GetPost returns a single post.
//
// @Summary   Get post
// @Tags      posts
// @Produce   json
// @Security  BearerAuth
// @Param     postId path string true "post id"
// @Success   200 {object} model.Post
// @Failure   404 {object} errorPayload
// @Router    /api/posts/{postId} [get]
func GetPost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		post, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(post)
	}
}

type updatePostRequest struct {
	Platform    *string  `json:"platform"`
	Caption     *string  `json:"caption"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

// UpdatePost edits platform, caption, description or tags.
//
// @Summary   Update post
// @Tags      posts
// @Accept    json
// @Produce   json
// @Security  BearerAuth
// @Param     postId path string true "post id"
// @Param     body   body updatePostRequest true "fields to change"
// @Success   200 {object} model.Post
// @Failure   400 {object} errorPayload
// @Failure   403 {object} errorPayload
// @Failure   404 {object} errorPayload
// @Router    /api/posts/{postId} [put]
func UpdatePost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		var req updatePostRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest("VALIDATION_ERROR", "request body must be valid JSON")
		}
		upd := model.PostUpdate{Caption: req.Caption, Description: req.Description}
		if req.Platform != nil {
			p := model.Platform(*req.Platform)
			upd.Platform = &p
		}
		if req.Tags != nil {
			upd.Tags = model.Tags(req.Tags)
		}
		post, err := svc.Update(c.UserContext(), actor(c), id, upd)
		if err != nil {
			return err
		}
		return c.JSON(post)
	}
}

// DeletePost removes a post and its stored file.
//
// @Summary   Delete post
// @Tags      posts
// @Produce   json
// @Security  BearerAuth
// @Param     postId path string true "post id"
// @Success   200 {object} messageResponse
// @Failure   403 {object} errorPayload
// @Failure   404 {object} errorPayload
// @Router    /api/posts/{postId} [delete]
func DeletePost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), actor(c), id); err != nil {
			return err
		}
		return c.JSON(messageResponse{Message: "Post deleted"})
	}
}

// PostMedia redirects to a time limited URL of the post's image.
//
// @Summary   Post image
// @Tags      posts
// @Security  BearerAuth
// @Param     postId path string true "post id"
// @Success   302
// @Failure   404 {object} errorPayload
// @Router    /api/posts/{postId}/media [get]
func PostMedia(svc service.PostService, store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		post, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		url, err := store.URL(c.UserContext(), post.FileRef, 15*time.Minute)
		if err != nil {
			return fmt.Errorf("%w: %v", service.ErrStorageFailed, err)
		}
		return c.Redirect(url, fiber.StatusFound)
	}
}

// transitionHandler adapts a workflow step taking (postID, actorID).
func transitionHandler(step func(c *fiber.Ctx, id, actorID string) (*model.Post, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		post, err := step(c, id, middleware.ClaimsFrom(c).UserID)
		if err != nil {
			return err
		}
		return c.JSON(post)
	}
}

// ApprovePost records the team approval of a pending post.
//
// @Summary   Team approve
// @Tags      workflow
// @Produce   json
// @Security  BearerAuth
// @Param     postId path string true "post id"
// @Success   200 {object} model.Post
// @Failure   404 {object} errorPayload
// @Failure   409 {object} errorPayload
// @Router    /api/posts/{postId}/approve [post]
func ApprovePost(svc service.WorkflowService) fiber.Handler {
	return transitionHandler(func(c *fiber.Ctx, id, actorID string) (*model.Post, error) {
		return svc.Approve(c.UserContext(), id, actorID)
	})
}

// ClientApprovePost records the client approval of a team approved post.
//
// @Summary   Client approve
// @Tags      workflow
// @Produce   json
// @Security  BearerAuth
// @Param     postId path string true "post id"
// @Success   200 {object} model.Post
// @Failure   404 {object} errorPayload
// @Failure   409 {object} errorPayload
// @Router    /api/posts/{postId}/client-approve [post]
func ClientApprovePost(svc service.WorkflowService) fiber.Handler {
	return transitionHandler(func(c *fiber.Ctx, id, actorID string) (*model.Post, error) {
		return svc.ClientApprove(c.UserContext(), id, actorID)
	})
}

// RejectPost ends review of a post.
//
// @Summary   Reject
// @Tags      workflow
// @Produce   json
// @Security  BearerAuth
// @Param     postId path string true "post id"
// @Success   200 {object} model.Post
// @Failure   404 {object} errorPayload
// @Failure   409 {object} errorPayload
// @Router    /api/posts/{postId}/reject [post]
func RejectPost(svc service.WorkflowService) fiber.Handler {
	return transitionHandler(func(c *fiber.Ctx, id, actorID string) (*model.Post, error) {
		return svc.Reject(c.UserContext(), id, actorID)
	})
}

type publishRequest struct {
	Platform string `json:"platform"`
}

// PublishPost marks a fully approved post as published.
//
// @Summary   Publish
// @Tags      workflow
// @Accept    json
// @Produce   json
// @Security  BearerAuth
// @Param     postId path string true "post id"
// @Param     body   body publishRequest false "target platform"
// @Success   200 {object} model.Post
// @Failure   404 {object} errorPayload
// @Failure   409 {object} errorPayload
// @Router    /api/posts/{postId}/publish [post]
func PublishPost(svc service.WorkflowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		var req publishRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest("VALIDATION_ERROR", "request body must be valid JSON")
			}
		}
		var platform model.Platform
		if req.Platform != "" {
			p, ok := model.ParsePlatform(req.Platform)
			if !ok {
				return service.ErrInvalidPlatform
			}
			platform = p
		}
		post, err := svc.Publish(c.UserContext(), id, platform)
		if err != nil {
			return err
		}
		return c.JSON(post)
	}
}
