package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/goodtune/yacgo/internal/auth"
	"github.com/goodtune/yacgo/internal/config"
	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/orchestrator"
	"github.com/goodtune/yacgo/internal/specs"
	"github.com/goodtune/yacgo/internal/yacerr"
)

// Version is the running build's advertised product version (§6.1 "/meta"),
// kept in lockstep with the spec compatibility line (specs.ProductVersion).
const Version = "v" + specs.ProductVersion + ".0"

// Patterns enforced server-side on path/query parameters (§6.1).
var (
	namePattern   = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,200}$`)
	searchPattern = regexp.MustCompile(`^[A-Za-z0-9_.\- ]{0,200}$`)
)

// API wires the §6.1 HTTP surface onto one Orchestrator.
type API struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	verifier *auth.Verifier
	logger   *slog.Logger
}

// NewAPI creates a new API handler.
func NewAPI(cfg *config.Config, orch *orchestrator.Orchestrator, verifier *auth.Verifier, logger *slog.Logger) *API {
	return &API{cfg: cfg, orch: orch, verifier: verifier, logger: logger}
}

// RegisterRoutes adds every §6.1 route to r. /meta and /health are the only
// two routes not gated by auth.Middleware.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/meta", a.handleMeta)
	r.Get("/health", a.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(a.verifier, a.cfg.DebugMode))

		r.Get("/status", a.handleStatus)
		r.Get("/me", a.handleMe)

		r.Get("/entity", a.handleListTypes)
		r.Get("/entity/{type}", a.handleListEntities)
		r.Get("/entity/{type}/{name}", a.handleGetEntity)
		r.Get("/entity/{type}/{name}/yaml", a.handleGetEntityYAML)
		r.Get("/entity/{type}/{name}/logs", a.handleGetEntityLogs)
		r.Post("/entity/{type}", a.handleCreateEntity)
		r.Put("/entity/{type}/{name}", a.handleReplaceEntity)
		r.Patch("/entity/{type}/{name}", a.handleUpdateEntity)
		r.Delete("/entity/{type}/{name}", a.handleDeleteEntity)
		r.Post("/entity/{type}/{name}/run/{action}", a.handleRunAction)
		r.Post("/validate", a.handleValidate)
	})
}

func (a *API) handleMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Meta{Version: Version})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	rc := a.requestContext(r)
	hash, err := a.orch.Hash(r.Context(), rc)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Status{Ready: true, Hash: hash})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleListTypes(w http.ResponseWriter, r *http.Request) {
	rc := a.requestContext(r)
	types, err := a.orch.Types(r.Context(), rc)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (a *API) handleListEntities(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")
	if !namePattern.MatchString(typeName) {
		a.writeError(w, r, yacerr.NewRequestError("invalid type name %q", typeName))
		return
	}

	search := r.URL.Query().Get("search")
	if !searchPattern.MatchString(search) {
		a.writeError(w, r, yacerr.NewRequestError("invalid search %q", search))
		return
	}

	skip, err := intParam(r, "skip", 0)
	if err != nil || skip < 0 {
		a.writeError(w, r, yacerr.NewRequestError("invalid skip parameter"))
		return
	}
	limit, err := intParam(r, "limit", 100)
	if err != nil || limit <= 0 || limit > 10000 {
		a.writeError(w, r, yacerr.NewRequestError("invalid limit parameter (must be in (0, 10000])"))
		return
	}

	rc := a.requestContext(r)
	_, entities, err := a.orch.ListDetailed(r.Context(), rc, typeName, search, skip, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

func (a *API) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	typeName, name, ok := a.typeAndName(w, r)
	if !ok {
		return
	}
	rc := a.requestContext(r)
	sp, ent, err := a.orch.Read(r.Context(), rc, typeName, name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	hash, err := a.orch.Hash(r.Context(), rc)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.DetailedEntity{
		Name:    ent.Name,
		Link:    ent.Link,
		Options: previewOptions(sp.Type, ent.Data),
		Perms:   ent.Perms,
		Data:    ent.Data,
		YAML:    ent.YAML,
		Hash:    hash,
	})
}

func (a *API) handleGetEntityYAML(w http.ResponseWriter, r *http.Request) {
	typeName, name, ok := a.typeAndName(w, r)
	if !ok {
		return
	}
	rc := a.requestContext(r)
	_, ent, err := a.orch.Read(r.Context(), rc, typeName, name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ent.YAML))
}

func (a *API) handleGetEntityLogs(w http.ResponseWriter, r *http.Request) {
	typeName, name, ok := a.typeAndName(w, r)
	if !ok {
		return
	}
	rc := a.requestContext(r)
	entries, err := a.orch.Logs(r.Context(), rc, typeName, name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.Log{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type createRequestBody struct {
	Name    string   `json:"name"`
	YAML    string   `json:"yaml"`
	Copy    string   `json:"copy"`
	Link    string   `json:"link"`
	Actions []string `json:"actions"`
}

func (a *API) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")
	if !namePattern.MatchString(typeName) {
		a.writeError(w, r, yacerr.NewRequestError("invalid type name %q", typeName))
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, r, yacerr.NewRequestError("invalid request body: %v", err))
		return
	}
	if body.Name != "" && !namePattern.MatchString(body.Name) {
		a.writeError(w, r, yacerr.NewRequestError("invalid name %q", body.Name))
		return
	}

	payload := &model.EntityPayload{Name: body.Name}
	switch {
	case body.Copy != "":
		payload.Kind = "copy"
		payload.CopyName = body.Copy
	case body.Link != "":
		payload.Kind = "link"
		payload.LinkName = body.Link
	default:
		payload.Kind = "new"
		payload.YAML = body.YAML
	}

	rc := a.requestContext(r)
	op := model.Operation{
		Kind:     model.OpCreate,
		TypeName: typeName,
		Name:     body.Name,
		Actions:  body.Actions,
		Entity:   payload,
		User:     rc.User,
	}

	diff, err := a.orch.Create(r.Context(), rc, typeName, op)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, diff)
}

type changeRequestBody struct {
	Name    string         `json:"name"`
	YAMLOld string         `json:"yaml_old"`
	YAMLNew string         `json:"yaml_new"`
	Data    map[string]any `json:"data"`
	Actions []string       `json:"actions"`
}

func (a *API) handleReplaceEntity(w http.ResponseWriter, r *http.Request) {
	typeName, name, ok := a.typeAndName(w, r)
	if !ok {
		return
	}
	var body changeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, r, yacerr.NewRequestError("invalid request body: %v", err))
		return
	}
	if body.Name != "" && !namePattern.MatchString(body.Name) {
		a.writeError(w, r, yacerr.NewRequestError("invalid name %q", body.Name))
		return
	}

	payload := &model.EntityPayload{
		Kind:    "replace",
		Name:    body.Name,
		YAMLOld: body.YAMLOld,
		YAMLNew: body.YAMLNew,
	}
	a.change(w, r, typeName, name, body.Name, body.Actions, payload)
}

func (a *API) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	typeName, name, ok := a.typeAndName(w, r)
	if !ok {
		return
	}
	var body changeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, r, yacerr.NewRequestError("invalid request body: %v", err))
		return
	}
	if body.Name != "" && !namePattern.MatchString(body.Name) {
		a.writeError(w, r, yacerr.NewRequestError("invalid name %q", body.Name))
		return
	}

	payload := &model.EntityPayload{
		Kind: "update",
		Name: body.Name,
		Data: body.Data,
	}
	a.change(w, r, typeName, name, body.Name, body.Actions, payload)
}

func (a *API) change(w http.ResponseWriter, r *http.Request, typeName, name, newName string, actions []string, payload *model.EntityPayload) {
	rc := a.requestContext(r)
	op := model.Operation{
		Kind:     model.OpChange,
		TypeName: typeName,
		Name:     newName,
		Actions:  actions,
		Entity:   payload,
		User:     rc.User,
	}
	diff, err := a.orch.Change(r.Context(), rc, typeName, name, op)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (a *API) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	typeName, name, ok := a.typeAndName(w, r)
	if !ok {
		return
	}
	rc := a.requestContext(r)
	if err := a.orch.Delete(r.Context(), rc, typeName, name); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRunAction(w http.ResponseWriter, r *http.Request) {
	typeName, name, ok := a.typeAndName(w, r)
	if !ok {
		return
	}
	actionName := chi.URLParam(r, "action")
	if !namePattern.MatchString(actionName) {
		a.writeError(w, r, yacerr.NewRequestError("invalid action name %q", actionName))
		return
	}
	rc := a.requestContext(r)
	if err := a.orch.RunAction(r.Context(), rc, typeName, name, actionName); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type validateRequestBody struct {
	Operation string         `json:"operation"`
	TypeName  string         `json:"type_name"`
	Name      string         `json:"name"`
	Actions   []string       `json:"actions"`
	YAML      string         `json:"yaml"`
	Copy      string         `json:"copy"`
	Link      string         `json:"link"`
	YAMLOld   string         `json:"yaml_old"`
	YAMLNew   string         `json:"yaml_new"`
	Data      map[string]any `json:"data"`
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body validateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, r, yacerr.NewRequestError("invalid request body: %v", err))
		return
	}

	kind := model.OperationKind(body.Operation)
	switch kind {
	case model.OpRead, model.OpCreate, model.OpChange, model.OpDelete, model.OpArbitrary:
	default:
		a.writeError(w, r, yacerr.NewRequestError("invalid operation %q", body.Operation))
		return
	}

	var payload *model.EntityPayload
	switch kind {
	case model.OpCreate:
		switch {
		case body.Copy != "":
			payload = &model.EntityPayload{Kind: "copy", Name: body.Name, CopyName: body.Copy}
		case body.Link != "":
			payload = &model.EntityPayload{Kind: "link", Name: body.Name, LinkName: body.Link}
		default:
			payload = &model.EntityPayload{Kind: "new", Name: body.Name, YAML: body.YAML}
		}
	case model.OpChange:
		if body.Data != nil {
			payload = &model.EntityPayload{Kind: "update", Name: body.Name, Data: body.Data}
		} else {
			payload = &model.EntityPayload{Kind: "replace", Name: body.Name, YAMLOld: body.YAMLOld, YAMLNew: body.YAMLNew}
		}
	}

	rc := a.requestContext(r)
	op := model.Operation{
		Kind:     kind,
		TypeName: body.TypeName,
		Name:     body.Name,
		Actions:  body.Actions,
		Entity:   payload,
		User:     rc.User,
	}

	result, err := a.orch.Validate(r.Context(), rc, body.TypeName, op)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) typeAndName(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	typeName := chi.URLParam(r, "type")
	name := chi.URLParam(r, "name")
	if !namePattern.MatchString(typeName) {
		a.writeError(w, r, yacerr.NewRequestError("invalid type name %q", typeName))
		return "", "", false
	}
	if !namePattern.MatchString(name) {
		a.writeError(w, r, yacerr.NewRequestError("invalid name %q", name))
		return "", "", false
	}
	return typeName, name, true
}

func (a *API) requestContext(r *http.Request) orchestrator.RequestContext {
	user, _ := auth.UserFromContext(r.Context())
	return orchestrator.RequestContext{Headers: headersFromRequest(r), User: user}
}

func headersFromRequest(r *http.Request) map[string]any {
	out := map[string]any{}
	for k, v := range r.Header {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

func previewOptions(t *model.Type, data map[string]any) map[string]any {
	if t == nil {
		return nil
	}
	out := map[string]any{}
	for _, opt := range t.Options {
		if v, ok := data[opt.Name]; ok {
			out[opt.Name] = v
			continue
		}
		found := false
		for _, aliasKey := range opt.Aliases {
			if v, ok := data[aliasKey]; ok {
				out[opt.Name] = v
				found = true
				break
			}
		}
		if !found {
			out[opt.Name] = opt.Default
		}
	}
	return out
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the {title, message} shape required by §7,
// logging and flattening server-facing errors unless debug_mode is set.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := yacerr.As(err)
	if !ok {
		e = yacerr.WrapServerError(err, "unexpected error")
	}

	if e.Code >= 500 {
		a.logger.Error("request_error", "error", err, "path", r.URL.Path, "method", r.Method)
	}

	message := e.Message
	if e.Code >= 500 && !a.cfg.DebugMode {
		message = "An internal error occurred"
	}

	writeJSON(w, e.Code, map[string]string{"title": e.Title, "message": message})
}
