package api

import (
	"github.com/emicklei/go-restful/v3"

	model "github.com/gitstash/relay/pkg/file"
)

// RegisterRoutes registers the relay routes
func RegisterRoutes(ws *restful.WebService, handler *FileHandler) {
	ws.Route(ws.POST("/upload").To(handler.UploadFile).
		Doc("upload a file to the content store").
		Consumes("multipart/form-data").
		Returns(200, "OK", model.UploadResult{}).
		Returns(400, "Bad Request", model.FileError{}).
		Returns(403, "Forbidden", model.FileError{}).
		Returns(413, "Request Entity Too Large", model.FileError{}).
		Returns(429, "Too Many Requests", model.FileError{}).
		Returns(502, "Bad Gateway", model.FileError{}))

	ws.Route(ws.GET("/file/{path}").To(handler.GetFile).
		Doc("get a stored file's content").
		Param(ws.PathParameter("path", "path of the stored file").DataType("string")).
		Notes("The response Content-Type is the type reported by the content store, "+
			"or sniffed from the file bytes when the store reports none.").
		Returns(200, "OK", nil).
		Returns(404, "Not Found", model.FileError{}).
		Returns(502, "Bad Gateway", model.FileError{}))

	ws.Route(ws.POST("/cleanup/{secret}").To(handler.ManualCleanup).
		Doc("trigger a retention sweep").
		Param(ws.PathParameter("secret", "pre-shared cleanup secret").DataType("string")).
		Param(ws.FormParameter("mode", "cleanup mode (age or count)").DataType("string").Required(true)).
		Param(ws.FormParameter("days", "retention days, required for mode=age").DataType("integer")).
		Param(ws.FormParameter("count", "number of oldest files to delete, required for mode=count").DataType("integer")).
		Returns(200, "OK", model.CleanupResult{}).
		Returns(400, "Bad Request", model.FileError{}).
		Returns(404, "Not Found", model.FileError{}).
		Returns(502, "Bad Gateway", model.FileError{}))

	ws.Route(ws.GET("/version").To(handler.GetVersion).
		Doc("get server version information").
		Returns(200, "OK", map[string]string{}))
}
