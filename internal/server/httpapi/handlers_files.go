package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/homeserver/internal/netx"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/go-chi/chi/v5"
)

// multipart parts above this size spill to temporary files
const uploadMemory = 8 << 20

type uploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Message  string `json:"message"`
}

type listResponse struct {
	Files []*models.ContentObject `json:"files"`
	Total int                     `json:"total"`
}

type deleteResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// splitTags parses the comma separated tags form field.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	// the multipart envelope adds a little on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, a.opts.MaxUploadBytes+uploadMemory)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			netx.WriteJSON(w, http.StatusRequestEntityTooLarge, netx.ErrorBody{Detail: "File too large"})
			return
		}
		netx.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		netx.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	if header.Size > a.opts.MaxUploadBytes {
		netx.WriteJSON(w, http.StatusRequestEntityTooLarge, netx.ErrorBody{Detail: "File too large"})
		return
	}

	obj, err := a.content.Save(r.Context(), identity(r), file,
		header.Filename, header.Header.Get("Content-Type"), splitTags(r.FormValue("tags")))
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}

	netx.WriteJSON(w, http.StatusOK, uploadResponse{
		ID:       obj.Handle,
		Filename: obj.DisplayName,
		Size:     obj.ByteSize,
		Message:  "File uploaded successfully",
	})
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	objs, err := a.content.List(r.Context(), identity(r), r.URL.Query().Get("tag"))
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	if objs == nil {
		objs = []*models.ContentObject{}
	}
	netx.WriteJSON(w, http.StatusOK, listResponse{Files: objs, Total: len(objs)})
}

func (a *API) handleMetadata(w http.ResponseWriter, r *http.Request) {
	obj, err := a.content.Metadata(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, obj)
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	obj, data, err := a.content.Fetch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}

	w.Header().Set("Content-Type", obj.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": obj.DisplayName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "id")
	if err := a.content.Delete(r.Context(), handle); err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, deleteResponse{ID: handle, Message: "File deleted successfully"})
}
