// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"strings"

	"github.com/hashicorp/go-hclog"
)

// A User is one /etc/passwd-shaped record. The stored hash is either
// "plain:" followed by the password or "*" for a locked account.
type User struct {
	UID    uint32
	GID    uint32 /* primary group */
	Name   string
	Gecos  string
	Home   string
	Shell  string
	Active bool

	hash string
}

func (u *User) verify(password string) bool {
	if u.hash == "*" {
		return false
	}
	if plain, ok := strings.CutPrefix(u.hash, "plain:"); ok {
		return plain == password
	}
	return u.hash == password
}

// A Group is one /etc/group-shaped record. Members holds
// supplementary uids; primary membership lives on the User.
type Group struct {
	GID     uint32
	Name    string
	Members []uint32
}

func (g *Group) isMember(uid uint32) bool {
	for _, m := range g.Members {
		if m == uid {
			return true
		}
	}
	return false
}

// A Users is the kernel's user and group database plus the current
// login identity. It seeds the classic system accounts: root with the
// demo password, daemon and nobody locked out.
type Users struct {
	log     hclog.Logger
	users   []*User
	groups  []*Group
	nextUID uint32
	nextGID uint32

	uid uint32 /* current identity */
	gid uint32
}

// NewUsers returns a database with the system accounts seeded and the
// current identity set to root.
func NewUsers(log hclog.Logger) *Users {
	u := &Users{
		log:     log.Named("user"),
		nextUID: 1000,
		nextGID: 1000,
	}
	u.users = []*User{
		{UID: 0, GID: 0, Name: "root", Gecos: "root,,,", Home: "/root", Shell: "/bin/sh", Active: true, hash: "plain:root"},
		{UID: 1, GID: 1, Name: "daemon", Gecos: "daemon,,,", Home: "/usr/sbin", Shell: "/bin/false", Active: true, hash: "*"},
		{UID: 65534, GID: 65534, Name: "nobody", Gecos: "nobody,,,", Home: "/", Shell: "/bin/false", Active: true, hash: "*"},
	}
	u.groups = []*Group{
		{GID: 0, Name: "root"},
		{GID: 1, Name: "wheel"},
		{GID: 100, Name: "users"},
		{GID: 65534, Name: "nobody"},
	}
	return u
}

// Lookup returns the user record for uid, or nil.
func (u *Users) Lookup(uid uint32) *User {
	for _, user := range u.users {
		if user.UID == uid {
			return user
		}
	}
	return nil
}

// LookupName returns the user record named name, or nil.
func (u *Users) LookupName(name string) *User {
	for _, user := range u.users {
		if user.Name == name {
			return user
		}
	}
	return nil
}

// LookupGroup returns the group record for gid, or nil.
func (u *Users) LookupGroup(gid uint32) *Group {
	for _, g := range u.groups {
		if g.GID == gid {
			return g
		}
	}
	return nil
}

// CreateUser adds a user with the next free uid. New users land in
// the users group, both as primary gid and as a listed member.
func (u *Users) CreateUser(name, password, gecos, home, shell string) (uint32, error) {
	if u.LookupName(name) != nil {
		return 0, EEXIST
	}
	if len(u.users) >= NUSER {
		return 0, ENOSPC
	}
	uid := u.nextUID
	u.nextUID++
	u.users = append(u.users, &User{
		UID: uid, GID: 100, Name: name,
		Gecos: gecos, Home: home, Shell: shell,
		Active: true, hash: "plain:" + password,
	})
	if g := u.LookupGroup(100); g != nil && len(g.Members) < NUSER {
		g.Members = append(g.Members, uid)
	}
	u.log.Info("user created", "name", name, "uid", uid)
	return uid, nil
}

// CreateGroup adds a group with the next free gid.
func (u *Users) CreateGroup(name string) (uint32, error) {
	for _, g := range u.groups {
		if g.Name == name {
			return 0, EEXIST
		}
	}
	if len(u.groups) >= NGROUP {
		return 0, ENOSPC
	}
	gid := u.nextGID
	u.nextGID++
	u.groups = append(u.groups, &Group{GID: gid, Name: name})
	u.log.Info("group created", "name", name, "gid", gid)
	return gid, nil
}

// AddToGroup lists uid as a supplementary member of gid.
func (u *Users) AddToGroup(uid, gid uint32) error {
	if u.Lookup(uid) == nil {
		return ENOENT
	}
	g := u.LookupGroup(gid)
	if g == nil {
		return ENOENT
	}
	if g.isMember(uid) {
		return nil
	}
	if len(g.Members) >= NUSER {
		return ENOSPC
	}
	g.Members = append(g.Members, uid)
	return nil
}

// RemoveFromGroup delists uid from gid.
func (u *Users) RemoveFromGroup(uid, gid uint32) error {
	g := u.LookupGroup(gid)
	if g == nil {
		return ENOENT
	}
	for i, m := range g.Members {
		if m == uid {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return nil
		}
	}
	return ENOENT
}

// InGroup reports whether uid belongs to gid, by primary gid or by
// supplementary membership.
func (u *Users) InGroup(uid, gid uint32) bool {
	if user := u.Lookup(uid); user != nil && user.GID == gid {
		return true
	}
	if g := u.LookupGroup(gid); g != nil {
		return g.isMember(uid)
	}
	return false
}

// Groups returns uid's gids, primary first.
func (u *Users) Groups(uid uint32) []uint32 {
	var gids []uint32
	if user := u.Lookup(uid); user != nil {
		gids = append(gids, user.GID)
	}
	for _, g := range u.groups {
		if g.isMember(uid) {
			dup := false
			for _, have := range gids {
				if have == g.GID {
					dup = true
					break
				}
			}
			if !dup {
				gids = append(gids, g.GID)
			}
		}
	}
	return gids
}

// CheckPermission reports whether uid may touch a resource owned by
// requiredUID and requiredGID. Root may touch anything.
func (u *Users) CheckPermission(uid, requiredUID, requiredGID uint32) bool {
	if uid == 0 {
		return true
	}
	if uid == requiredUID {
		return true
	}
	return u.InGroup(uid, requiredGID)
}

// Authenticate checks name's password and, on success, makes name the
// current identity and returns its uid.
func (u *Users) Authenticate(name, password string) (uint32, error) {
	user := u.LookupName(name)
	if user == nil || !user.Active {
		return 0, ENOENT
	}
	if !user.verify(password) {
		return 0, EACCES
	}
	u.uid = user.UID
	u.gid = user.GID
	u.log.Info("authenticated", "name", name, "uid", user.UID)
	return user.UID, nil
}

// SwitchUser changes the current identity to uid. Root may become
// anyone; everyone else may only name themselves.
func (u *Users) SwitchUser(uid uint32) error {
	user := u.Lookup(uid)
	if user == nil {
		return ENOENT
	}
	if u.uid != 0 && u.uid != uid {
		return EPERM
	}
	u.uid = user.UID
	u.gid = user.GID
	u.log.Info("switched user", "name", user.Name, "uid", uid)
	return nil
}

// DeleteUser removes uid's record and group memberships. Root stays.
func (u *Users) DeleteUser(uid uint32) error {
	if uid == 0 {
		return EPERM
	}
	for _, g := range u.groups {
		for i, m := range g.Members {
			if m == uid {
				g.Members = append(g.Members[:i], g.Members[i+1:]...)
				break
			}
		}
	}
	for i, user := range u.users {
		if user.UID == uid {
			u.users = append(u.users[:i], u.users[i+1:]...)
			u.log.Info("user deleted", "name", user.Name, "uid", uid)
			return nil
		}
	}
	return ENOENT
}

// Current returns the current identity.
func (u *Users) Current() (uid, gid uint32) { return u.uid, u.gid }

// IsRoot reports whether the current identity is root.
func (u *Users) IsRoot() bool { return u.uid == 0 }

// Stats reports how many users and groups exist.
func (u *Users) Stats() (users, groups int) {
	return len(u.users), len(u.groups)
}
