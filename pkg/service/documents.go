package service

import (
	"bytes"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/errors"
)

type createRequest struct {
	MimeType    string `json:"mimeType"`
	DisplayName string `json:"displayName"`
}

/*
fail writes err with the status matching its kind.
*/
func (srv *Server) fail(ctx fiber.Ctx, err error) error {
	status := errors.HTTPStatus(err)

	if status >= fiber.StatusInternalServerError {
		log.Error("request failed", "method", ctx.Method(), "path", ctx.Path(), "error", err)
	}

	return ctx.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  errors.KindOf(err).String(),
	})
}

func queryLimit(ctx fiber.Ctx) (int, error) {
	raw := ctx.Query("limit")
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Newf(errors.InvalidArgument, "query", "", "bad limit %q", raw)
	}

	return n, nil
}

func (srv *Server) handleRoots(ctx fiber.Ctx) error {
	roots, err := srv.provider.Roots(ctx)
	if err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.JSON(roots)
}

func (srv *Server) handleRootInfo(ctx fiber.Ctx) error {
	root, err := srv.provider.Root(ctx, ctx.Params("root"))
	if err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.JSON(root)
}

func (srv *Server) handleSearch(ctx fiber.Ctx) error {
	limit, err := queryLimit(ctx)
	if err != nil {
		return srv.fail(ctx, err)
	}

	docs, err := srv.provider.Search(ctx, ctx.Params("root"), ctx.Query("q"), limit)
	if err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.JSON(docs)
}

func (srv *Server) handleRecent(ctx fiber.Ctx) error {
	limit, err := queryLimit(ctx)
	if err != nil {
		return srv.fail(ctx, err)
	}

	docs, err := srv.provider.Recent(ctx, ctx.Params("root"), limit)
	if err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.JSON(docs)
}

func (srv *Server) handleDocument(ctx fiber.Ctx) error {
	doc, err := srv.provider.Document(ctx, ctx.Params("id"))
	if err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.JSON(doc)
}

func (srv *Server) handleChildren(ctx fiber.Ctx) error {
	docs, err := srv.provider.Children(ctx, ctx.Params("id"), ctx.Query("order"))
	if err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.JSON(docs)
}

func (srv *Server) handleCreate(ctx fiber.Ctx) error {
	var req createRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return srv.fail(ctx, errors.Newf(errors.InvalidArgument, "create", "", "invalid body: %v", err))
	}

	id, err := srv.provider.Create(ctx, ctx.Params("id"), req.MimeType, req.DisplayName)
	if err != nil {
		return srv.fail(ctx, err)
	}

	doc, err := srv.provider.Document(ctx, id)
	if err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(doc)
}

func (srv *Server) handleDelete(ctx fiber.Ctx) error {
	if err := srv.provider.Delete(ctx, ctx.Params("id")); err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

/*
handleRead streams a document's bytes. The handle is closed by fasthttp once
the body has been sent.
*/
func (srv *Server) handleRead(ctx fiber.Ctx) error {
	handle, err := srv.provider.Open(ctx, ctx.Params("id"), "r")
	if err != nil {
		return srv.fail(ctx, err)
	}

	doc := handle.Document()
	ctx.Set(fiber.HeaderContentType, doc.MimeType)
	ctx.Set(fiber.HeaderLastModified, doc.LastModified.UTC().Format(http.TimeFormat))

	return ctx.SendStream(handle, int(doc.Size))
}

/*
handleWrite replaces (mode wt, the default) or appends to (mode wa) a
document with the request body.
*/
func (srv *Server) handleWrite(ctx fiber.Ctx) error {
	mode := ctx.Query("mode", "wt")

	parsed, err := documents.ParseMode(mode)
	if err != nil {
		return srv.fail(ctx, err)
	}

	if !parsed.Write {
		return srv.fail(ctx, errors.Newf(errors.InvalidArgument, "write", ctx.Params("id"), "mode %q has no write intent", mode))
	}

	handle, err := srv.provider.Open(ctx, ctx.Params("id"), mode)
	if err != nil {
		return srv.fail(ctx, err)
	}

	_, copyErr := io.Copy(handle, bytes.NewReader(ctx.Body()))
	closeErr := handle.Close()

	if err := stderrors.Join(copyErr, closeErr); err != nil {
		return srv.fail(ctx, errors.New(errors.IOFailure, "write", ctx.Params("id"), err))
	}

	doc, err := srv.provider.Document(ctx, ctx.Params("id"))
	if err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.JSON(doc)
}
