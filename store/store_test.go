package store

import "testing"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUserCreateGet(t *testing.T) {
	st := newTestStore(t)

	u, err := st.CreateUser("alice", "", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.UserID != "alice" {
		t.Fatalf("user_id = %q, want alice", u.UserID)
	}

	got, err := st.GetUser("alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.PasswordHash != "hash" {
		t.Fatalf("password_hash = %q, want hash", got.PasswordHash)
	}

	if _, err := st.CreateUser("alice", "", "hash2"); err == nil {
		t.Fatal("expected conflict creating duplicate user")
	}

	if _, err := st.GetUser("nobody"); err == nil {
		t.Fatal("expected not-found for missing user")
	}
}

func TestSessionLifecycle(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.CreateUser("bob", "", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	sess, err := st.UpsertSession("tok-1", "bob", DefaultSessionTTL)
	if err != nil {
		t.Fatalf("upsert session: %v", err)
	}
	got, err := st.GetSession("tok-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID != "bob" || got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("session mismatch: %+v", got)
	}

	if err := st.DeleteSession("tok-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := st.GetSession("tok-1"); err == nil {
		t.Fatal("expected not-found after delete")
	}
}

func TestOfflineQueueFIFOAndAtomicity(t *testing.T) {
	st := newTestStore(t)

	for _, event := range []string{"a", "b", "c"} {
		if err := st.EnqueueOfflineMessage("carol", event); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	entries, err := st.ConsumeOfflineMessages("carol")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].Event != want {
			t.Fatalf("entries[%d] = %q, want %q", i, entries[i].Event, want)
		}
	}

	again, err := st.ConsumeOfflineMessages("carol")
	if err != nil {
		t.Fatalf("consume again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected empty queue after drain, got %d", len(again))
	}
}

func TestRoomCreateJoinLeaveDelete(t *testing.T) {
	st := newTestStore(t)
	for _, u := range []string{"owner", "member"} {
		if _, err := st.CreateUser(u, "", "hash"); err != nil {
			t.Fatalf("create user %s: %v", u, err)
		}
	}

	room, err := st.CreateRoom("general", "owner", false, "", "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.Owner != "owner" {
		t.Fatalf("owner = %q, want owner", room.Owner)
	}

	if err := st.AddMember("general", "member"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	members, err := st.ListRoomMembers("general")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len(members) = %d, want 2", len(members))
	}

	if err := st.RemoveMember("general", "member"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	members, err = st.ListRoomMembers("general")
	if err != nil {
		t.Fatalf("list members after remove: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("len(members) = %d, want 1", len(members))
	}

	if err := st.DeleteRoom("general"); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	if _, err := st.GetRoom("general"); err == nil {
		t.Fatal("expected not-found after delete")
	}
}

func TestFriendRequestAcceptCanonicalOrdering(t *testing.T) {
	st := newTestStore(t)
	for _, u := range []string{"zed", "amy"} {
		if _, err := st.CreateUser(u, "", "hash"); err != nil {
			t.Fatalf("create user %s: %v", u, err)
		}
	}

	req, err := st.SendFriendRequest("zed", "amy", "hi")
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if req.Status != FriendRequestPending {
		t.Fatalf("status = %q, want pending", req.Status)
	}

	if _, err := st.AcceptFriendRequest(req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	areFriends, err := st.AreFriends("amy", "zed")
	if err != nil {
		t.Fatalf("are friends: %v", err)
	}
	if !areFriends {
		t.Fatal("expected amy and zed to be friends regardless of argument order")
	}

	// Accepting again is idempotent.
	if _, err := st.AcceptFriendRequest(req.ID); err != nil {
		t.Fatalf("re-accept: %v", err)
	}
}

func TestFriendRequestReopensOnResend(t *testing.T) {
	st := newTestStore(t)
	for _, u := range []string{"x", "y"} {
		if _, err := st.CreateUser(u, "", "hash"); err != nil {
			t.Fatalf("create user %s: %v", u, err)
		}
	}

	first, err := st.SendFriendRequest("x", "y", "hello")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := st.RejectFriendRequest(first.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	second, err := st.SendFriendRequest("x", "y", "hello again")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected resend to reopen the same row, got new id %d vs %d", second.ID, first.ID)
	}
	if second.Status != FriendRequestPending {
		t.Fatalf("status = %q, want pending after reopen", second.Status)
	}
}
