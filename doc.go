// Package nbsftp implements a non-blocking client session for the SSH File
// Transfer Protocol as described in
// https://filezilla-project.org/specs/draft-ietf-secsh-filexfer-02.txt
//
// A Session never blocks except while waiting for its socket to become ready,
// and every operation bounds that wait with a Timeout. The secure channel
// itself is provided by an Engine; package sshengine implements one on top of
// golang.org/x/crypto/ssh, and package netsock provides a non-blocking TCP
// Socket.
//
//	s := nbsftp.New(netsock.New(), sshengine.Factory(sshengine.Config{User: "user"}))
//	defer s.Close()
//
//	if r := s.Connect("example.com", 22, nbsftp.After(10*time.Second)); !r.IsOk() {
//		return r.Err()
//	}
//
//	if r := s.LoginPassword("user", "secret", nbsftp.After(10*time.Second)); !r.IsOk() {
//		return r.Err()
//	}
//
// Operations report their outcome as a Result whose Status tells apart local
// conditions, failures of the secure session and errors returned by the SFTP
// server.
package nbsftp
