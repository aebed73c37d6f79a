package gateway

import (
	"net/http"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/errors"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	param, ok := apacheta.QueryParams[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown query "+name)
		return
	}
	var arg string
	if param != "" {
		values := r.URL.Query()
		if !values.Has(param) {
			s.fail(w, r, errors.NewInterfaceVersionError(s.store.GetInterfaceVersion(),
				"query "+name+" without parameter "+param))
			return
		}
		arg = values.Get(param)
	}
	v, err := apacheta.RunQuery(s.store, name, arg)
	s.respond(w, r, v, err)
}
