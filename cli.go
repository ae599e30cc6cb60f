package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/crypto/bcrypt"

	"relay/server/store"
)

// RunCLI handles administrative subcommands that operate directly on the
// database without starting the server. Returns true if a subcommand was
// handled (§4.17).
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "createuser":
		return cliCreateUser(args[1:], dbPath)
	case "resetpassword":
		return cliResetPassword(args[1:], dbPath)
	case "listusers":
		return cliListUsers(dbPath)
	default:
		return false
	}
}

func openStoreOrExit(dbPath string) *store.Store {
	st, err := store.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

func cliCreateUser(args []string, dbPath string) bool {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: server createuser <username> [password]")
		os.Exit(1)
	}
	username := args[0]
	password := ""
	if len(args) > 1 {
		password = args[1]
	} else {
		password = promptPassword()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error hashing password: %v\n", err)
		os.Exit(1)
	}

	st := openStoreOrExit(dbPath)
	defer st.Close()

	if _, err := st.CreateUser(username, "", string(hash)); err != nil {
		fmt.Fprintf(os.Stderr, "error creating user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created user %q\n", username)
	return true
}

func cliResetPassword(args []string, dbPath string) bool {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: server resetpassword <username> [password]")
		os.Exit(1)
	}
	username := args[0]
	password := ""
	if len(args) > 1 {
		password = args[1]
	} else {
		password = promptPassword()
	}

	st := openStoreOrExit(dbPath)
	defer st.Close()

	if _, err := st.GetUser(username); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error hashing password: %v\n", err)
		os.Exit(1)
	}
	if err := st.SetPasswordHash(username, string(hash)); err != nil {
		fmt.Fprintf(os.Stderr, "error resetting password: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Password reset for %q\n", username)
	return true
}

func cliListUsers(dbPath string) bool {
	st := openStoreOrExit(dbPath)
	defer st.Close()

	users, err := st.ListUsers()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return true
	}
	for _, u := range users {
		created := time.Unix(u.CreatedAt, 0)
		fmt.Printf("  %s (created %s)\n", u.UserID, humanize.Time(created))
	}
	return true
}

func promptPassword() string {
	fmt.Fprint(os.Stderr, "Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
