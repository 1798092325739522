package memory

import (
	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
)

type realmRow struct {
	realm repository.Realm
	// structural guarda lo que no tiene tabla propia (roles, grupos, secciones).
	structural  types.RealmBundle
	clientOrder []string
	userOrder   []string
}

type clientRow struct {
	realmID string
	reg     types.ClientRegistration
}

type userRow struct {
	realmID   string
	rec       types.UserRecord
	actions   []string
	createdAt int64
	creds     []repository.StorageCredential
}

type state struct {
	realms  map[string]*realmRow
	byName  map[string]string
	clients map[string]*clientRow
	users   map[string]*userRow
}

func newState() *state {
	return &state{
		realms:  map[string]*realmRow{},
		byName:  map[string]string{},
		clients: map[string]*clientRow{},
		users:   map[string]*userRow{},
	}
}

// clone copia todo lo que una Tx puede mutar. Los valores de structural y
// reg/rec se reemplazan enteros, nunca se mutan en el lugar.
func (s *state) clone() *state {
	c := newState()
	for id, r := range s.realms {
		cp := *r
		cp.clientOrder = append([]string(nil), r.clientOrder...)
		cp.userOrder = append([]string(nil), r.userOrder...)
		if r.realm.ManagementClientID != nil {
			v := *r.realm.ManagementClientID
			cp.realm.ManagementClientID = &v
		}
		c.realms[id] = &cp
	}
	for k, v := range s.byName {
		c.byName[k] = v
	}
	for id, cl := range s.clients {
		cp := *cl
		c.clients[id] = &cp
	}
	for id, u := range s.users {
		cp := *u
		cp.actions = append([]string(nil), u.actions...)
		cp.creds = append([]repository.StorageCredential(nil), u.creds...)
		c.users[id] = &cp
	}
	return c
}

func removeID(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
