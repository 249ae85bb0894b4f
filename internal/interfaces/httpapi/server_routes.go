package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET "+openAPIPath, handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerGuildRoutes(mux *http.ServeMux, handler *Handler, internalToken string) {
	guarded := func(fn http.HandlerFunc) http.Handler {
		return RequireInternalToken(internalToken, fn)
	}

	mux.Handle("POST /v1/guilds", guarded(handler.RegisterGuild))
	mux.Handle("GET /v1/guilds", guarded(handler.ListGuilds))
	mux.Handle("GET /v1/guilds/{guildID}", guarded(handler.GetGuild))
	mux.Handle("DELETE /v1/guilds/{guildID}", guarded(handler.DeleteGuild))
	mux.Handle("GET /v1/members/{userID}/guild", guarded(handler.GetMemberGuild))

	mux.Handle("PUT /v1/guilds/{guildID}/leader", guarded(handler.TransferLeadership))
	mux.Handle("DELETE /v1/guilds/{guildID}/co-leader/{userID}", guarded(handler.RemoveCoLeader))
	mux.Handle("POST /v1/guilds/{guildID}/managers", guarded(handler.AddManager))
	mux.Handle("DELETE /v1/guilds/{guildID}/managers/{userID}", guarded(handler.RemoveManager))
	mux.Handle("PUT /v1/guilds/{guildID}/regions/{region}/status", guarded(handler.SetRegionStatus))

	mux.Handle("POST /v1/guilds/{guildID}/roster", guarded(handler.AddToRoster))
	mux.Handle("DELETE /v1/guilds/{guildID}/roster/{region}/{roster}/{userID}", guarded(handler.RemoveFromRoster))
}

func registerInvitationRoutes(mux *http.ServeMux, handler *Handler, internalToken string) {
	mux.Handle("POST /v1/guilds/{guildID}/invitations", RequireInternalToken(internalToken, http.HandlerFunc(handler.CreateInvitation)))
	mux.Handle("POST /v1/invitations/accept", RequireInternalToken(internalToken, http.HandlerFunc(handler.AcceptInvitation)))
	mux.Handle("POST /v1/invitations/decline", RequireInternalToken(internalToken, http.HandlerFunc(handler.DeclineInvitation)))
}
