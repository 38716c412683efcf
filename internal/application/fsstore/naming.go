package fsstore

import (
	"path"

	domain "github.com/danbao/testring-sub000/internal/domain/fsstore"
)

// fullPath synthesizes the artifact-relative path for a request:
// "<workerId>/<fileName>" when UniqPolicy is Worker; when Global, the
// fileName itself if one is given, otherwise
// "<workerId>-<requestId>-<type>.<ext>" under a per-run subdirectory.
func fullPath(runID string, req domain.Request) string {
	if req.Meta.UniqPolicy == domain.Worker {
		name := req.Meta.FileName
		if name == "" {
			name = req.RequestID
		}
		return path.Join(req.WorkerID, name)
	}
	if req.Meta.FileName != "" {
		return req.Meta.FileName
	}

	typ := req.Meta.Type
	if typ == "" {
		typ = "artifact"
	}
	name := req.WorkerID + "-" + req.RequestID + "-" + typ
	if req.Meta.Ext != "" {
		name += "." + req.Meta.Ext
	}
	return path.Join(runID, name)
}
