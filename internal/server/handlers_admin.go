package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conebot/conebot-go/internal/domain"
)

// Admin bodies decode straight into the domain structs; the collaborator
// process is the only caller and speaks the canonical field names.

func (s *Server) handleCreateCurrency(w http.ResponseWriter, r *http.Request) {
	var c domain.Currency
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	c.GuildID = chi.URLParam(r, "guildID")
	if err := s.engine.CreateCurrency(r.Context(), c); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"created": c.CurrName})
}

func (s *Server) handleUpdateCurrency(w http.ResponseWriter, r *http.Request) {
	var patch domain.Currency
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	guildID, name := chi.URLParam(r, "guildID"), chi.URLParam(r, "name")
	err := s.engine.UpdateCurrency(r.Context(), guildID, name, func(c *domain.Currency) error {
		rev := c.Revision
		*c = patch
		c.GuildID, c.CurrName, c.Revision = guildID, name, rev
		return nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"updated": name})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var i domain.Item
	if err := json.NewDecoder(r.Body).Decode(&i); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	i.GuildID = chi.URLParam(r, "guildID")
	if err := s.engine.CreateItem(r.Context(), i); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"created": i.ItemName})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch domain.Item
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	guildID, name := chi.URLParam(r, "guildID"), chi.URLParam(r, "name")
	err := s.engine.UpdateItem(r.Context(), guildID, name, func(i *domain.Item) error {
		rev := i.Revision
		*i = patch
		i.GuildID, i.ItemName, i.Revision = guildID, name, rev
		return nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"updated": name})
}

func (s *Server) handleCreateStoreEntry(w http.ResponseWriter, r *http.Request) {
	var e domain.StoreEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	e.GuildID = chi.URLParam(r, "guildID")
	if err := s.engine.CreateStoreEntry(r.Context(), e); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"created": e.ItemName + ":" + e.CurrName})
}

func (s *Server) handleUpdateStoreEntry(w http.ResponseWriter, r *http.Request) {
	var patch domain.StoreEntry
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	guildID := chi.URLParam(r, "guildID")
	itemName, currName := chi.URLParam(r, "item"), chi.URLParam(r, "currency")
	err := s.engine.UpdateStoreEntry(r.Context(), guildID, itemName, currName, func(e *domain.StoreEntry) error {
		rev := e.Revision
		*e = patch
		e.GuildID, e.ItemName, e.CurrName, e.Revision = guildID, itemName, currName, rev
		return nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"updated": itemName + ":" + currName})
}

func (s *Server) handleAddDropTableEntry(w http.ResponseWriter, r *http.Request) {
	var e domain.DropTableEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	e.GuildID = chi.URLParam(r, "guildID")
	e.TableName = chi.URLParam(r, "table")
	if err := s.engine.AddDropTableEntry(r.Context(), e); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"created": e.EntryID})
}

func (s *Server) handleRemoveDropTableEntry(w http.ResponseWriter, r *http.Request) {
	err := s.engine.RemoveDropTableEntry(r.Context(),
		chi.URLParam(r, "guildID"), chi.URLParam(r, "table"), chi.URLParam(r, "entryID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"removed": chi.URLParam(r, "entryID")})
}
