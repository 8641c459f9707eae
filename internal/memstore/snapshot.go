package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/attachment"
	"github.com/chitter-chat/chitter-server/internal/channel"
	"github.com/chitter-chat/chitter-server/internal/message"
	"github.com/chitter-chat/chitter-server/internal/room"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// SaveFunc persists an encoded snapshot.
type SaveFunc func(ctx context.Context, data []byte) error

// LoadFunc returns the last persisted snapshot, or nil when none exists.
type LoadFunc func(ctx context.Context) ([]byte, error)

// channelSnapshot pairs a channel with its private-member ids.
type channelSnapshot struct {
	Channel channel.Channel `json:"channel"`
	UserIDs []uuid.UUID     `json:"userIds"`
}

// roomSnapshot is the serialized form of one roomState. Users keep their
// tokens: the snapshot is trusted storage, not an API payload.
type roomSnapshot struct {
	Room          room.Room               `json:"room"`
	Users         []user.User             `json:"users"`
	Channels      []channelSnapshot       `json:"channels"`
	Attachments   []attachment.Attachment `json:"attachments"`
	Messages      []message.Message       `json:"messages"`
	NextMessageID int64                   `json:"nextMessageId"`
}

// encode serializes the whole store under a read lock.
func (s *Store) encode() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make([]roomSnapshot, 0, len(s.rooms))
	for _, rs := range s.rooms {
		snap := roomSnapshot{
			Room:          rs.room,
			Messages:      append([]message.Message(nil), rs.messages...),
			NextMessageID: rs.nextMessageID,
		}
		for _, u := range rs.users {
			snap.Users = append(snap.Users, *u)
		}
		sort.Slice(snap.Users, func(i, j int) bool {
			return snap.Users[i].ID.String() < snap.Users[j].ID.String()
		})
		for _, cs := range rs.channels {
			members := make([]uuid.UUID, 0, len(cs.members))
			for id := range cs.members {
				members = append(members, id)
			}
			sort.Slice(members, func(i, j int) bool {
				return members[i].String() < members[j].String()
			})
			snap.Channels = append(snap.Channels, channelSnapshot{Channel: cs.channel, UserIDs: members})
		}
		sort.Slice(snap.Channels, func(i, j int) bool {
			return snap.Channels[i].Channel.ID.String() < snap.Channels[j].Channel.ID.String()
		})
		for _, a := range rs.attachments {
			snap.Attachments = append(snap.Attachments, *a)
		}
		sort.Slice(snap.Attachments, func(i, j int) bool {
			return snap.Attachments[i].ID.String() < snap.Attachments[j].ID.String()
		})
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Room.ID.String() < snapshots[j].Room.ID.String()
	})
	return json.Marshal(snapshots)
}

// restore replaces the store's state with a decoded snapshot, rebuilding the
// token index and the per-room message order.
func (s *Store) restore(data []byte) error {
	var snapshots []roomSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	rooms := make(map[uuid.UUID]*roomState, len(snapshots))
	tokens := make(map[string]tokenRef)
	for _, snap := range snapshots {
		rs := &roomState{
			room:          snap.Room,
			users:         make(map[uuid.UUID]*user.User, len(snap.Users)),
			channels:      make(map[uuid.UUID]*channelState, len(snap.Channels)),
			attachments:   make(map[uuid.UUID]*attachment.Attachment, len(snap.Attachments)),
			messages:      append([]message.Message(nil), snap.Messages...),
			nextMessageID: snap.NextMessageID,
		}
		sort.Slice(rs.messages, func(i, j int) bool { return rs.messages[i].ID < rs.messages[j].ID })
		if rs.nextMessageID == 0 {
			rs.nextMessageID = 1
		}
		for i := range snap.Users {
			u := snap.Users[i]
			rs.users[u.ID] = &u
			if u.Token != "" {
				tokens[u.Token] = tokenRef{roomID: snap.Room.ID, userID: u.ID}
			}
		}
		for _, cs := range snap.Channels {
			members := make(map[uuid.UUID]struct{}, len(cs.UserIDs))
			for _, id := range cs.UserIDs {
				members[id] = struct{}{}
			}
			rs.channels[cs.Channel.ID] = &channelState{channel: cs.Channel, members: members}
		}
		for i := range snap.Attachments {
			a := snap.Attachments[i]
			rs.attachments[a.ID] = &a
		}
		rooms[snap.Room.ID] = rs
	}

	s.mu.Lock()
	s.rooms = rooms
	s.tokens = tokens
	s.mu.Unlock()
	return nil
}

// snapshot encodes and persists the current state.
func (s *Store) snapshot(ctx context.Context) error {
	data, err := s.encode()
	if err != nil {
		return err
	}
	return s.save(ctx, data)
}

// snapshotLoop persists the state every interval until Close.
func (s *Store) snapshotLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.snapshot(context.Background()); err != nil {
				s.log.Error().Err(err).Msg("periodic snapshot failed")
			}
		case <-s.stop:
			return
		}
	}
}

// fileSnapshot builds a save/load pair over a single JSON file. Saves go
// through a temp file and a rename so a crash mid-write never truncates the
// previous snapshot.
func fileSnapshot(path string) (SaveFunc, LoadFunc) {
	save := func(_ context.Context, data []byte) error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	}
	load := func(_ context.Context) ([]byte, error) {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return save, load
}
