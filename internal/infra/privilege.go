package infra

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// Account is the resolved identity the daemon runs as.
type Account struct {
	Username string
	UID      int
	GID      int
	HomeDir  string
}

// LookupAccount resolves a login name or, when byUID is set, a numeric uid.
func LookupAccount(name string, uid int, byUID bool) (*Account, error) {
	var (
		u   *user.User
		err error
	)
	if byUID {
		u, err = user.LookupId(strconv.Itoa(uid))
	} else {
		u, err = user.Lookup(name)
	}
	if err != nil {
		return nil, err
	}

	parsedUID, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("unexpected uid %q for %s: %w", u.Uid, u.Username, err)
	}
	parsedGID, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("unexpected gid %q for %s: %w", u.Gid, u.Username, err)
	}
	return &Account{Username: u.Username, UID: parsedUID, GID: parsedGID, HomeDir: u.HomeDir}, nil
}

// SwitchUser drops root privileges to account and points HOME and USER at it.
// It returns false without changing anything when not running as root.
func SwitchUser(account *Account) (bool, error) {
	if os.Geteuid() != 0 {
		return false, nil
	}

	// Group first; after setuid we may no longer change it.
	if err := unix.Setgroups([]int{account.GID}); err != nil {
		return false, fmt.Errorf("setgroups %d: %w", account.GID, err)
	}
	if err := unix.Setgid(account.GID); err != nil {
		return false, fmt.Errorf("setgid %d: %w", account.GID, err)
	}
	if err := unix.Setuid(account.UID); err != nil {
		return false, fmt.Errorf("setuid %d: %w", account.UID, err)
	}

	os.Setenv("HOME", account.HomeDir)
	os.Setenv("USER", account.Username)
	return true, nil
}
