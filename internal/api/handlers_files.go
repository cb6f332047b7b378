package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/msmeflow/quoteflow/internal/storage"
	"github.com/msmeflow/quoteflow/internal/upload"
)

// readLimited reads at most upload.MaxFileSize+1 bytes so an oversized
// body still fails validation with the user-facing message.
func readLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, upload.MaxFileSize+1))
}

func (s *Server) handleUploadFile(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}

	typ, err := upload.ParseType(c.FormValue("type"))
	if err != nil {
		return fromError("invalid upload type", err)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}
	f, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to read upload", err)
	}
	defer f.Close()
	data, err := readLimited(f)
	if err != nil {
		return NewBadRequestError("failed to read upload", err)
	}

	res, err := s.deps.Files.Upload(c.Request().Context(), upload.Request{
		UserID:      sess.User.ID,
		AccessToken: sess.AccessToken,
		Type:        typ,
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return fromError("failed to upload file", err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) handleListFiles(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	files, err := s.deps.Files.List(c.Request().Context(), sess.User.ID)
	if err != nil {
		return fromError("failed to list files", err)
	}
	if files == nil {
		files = []upload.UploadedFile{}
	}
	return c.JSON(http.StatusOK, files)
}

func (s *Server) handleOpenFile(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	path := c.QueryParam("path")
	if path == "" {
		return NewValidationError("path")
	}
	data, err := s.deps.Files.Open(c.Request().Context(), sess.User.ID, path)
	if err != nil {
		return fromError(fmt.Sprintf("file not found: %s", path), err)
	}
	return c.Blob(http.StatusOK, storage.ContentTypeFor(path), data)
}

func (s *Server) handleUpdateFile(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	path := c.QueryParam("path")
	if path == "" {
		return NewValidationError("path")
	}
	data, err := readLimited(c.Request().Body)
	if err != nil {
		return NewBadRequestError("failed to read body", err)
	}
	file, err := s.deps.Files.Update(c.Request().Context(), sess.User.ID, path, data)
	if err != nil {
		return fromError("failed to update file", err)
	}
	return c.JSON(http.StatusOK, file)
}

func (s *Server) handleDeleteFile(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	path := c.QueryParam("path")
	if path == "" {
		return NewValidationError("path")
	}
	err = s.deps.Files.Delete(c.Request().Context(), sess.User.ID, path)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("file", path)
	}
	if err != nil {
		return fromError("failed to delete file", err)
	}
	return c.NoContent(http.StatusNoContent)
}
