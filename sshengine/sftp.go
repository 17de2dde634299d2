package sshengine

import (
	"io"
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/pkg/nbsftp"
	sshfx "github.com/pkg/nbsftp/internal/encoding/ssh/filexfer"
	"github.com/pkg/nbsftp/internal/encoding/ssh/filexfer/openssh"
)

var errConnectionLost = &nbsftp.EngineError{Code: nbsftp.CodeChannelClosed, Message: "sftp channel closed"}

type result struct {
	pkt sshfx.RawPacket
	buf []byte
	err error
}

// handle is the client side state of an open remote file or directory.
type handle struct {
	offset  uint64
	entries []*sshfx.NameEntry
	eof     bool
}

// sftpClient speaks SFTP version 3 over an ssh session channel.
type sftpClient struct {
	engine  *Engine
	session *ssh.Session
	rd      io.Reader
	wr      io.WriteCloser

	maxPacket uint32
	version   sshfx.VersionPacket

	reqid      atomix.Uint32
	lastStatus atomix.Uint32

	wmu sync.Mutex // serialises request writes

	mu       sync.Mutex
	inflight map[uint32]chan<- result
	handles  map[nbsftp.Handle]*handle
	err      error
}

var _ nbsftp.SFTP = (*sftpClient)(nil)

func startSFTP(e *Engine, client *ssh.Client) (*sftpClient, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, &nbsftp.EngineError{Code: nbsftp.CodeChannelFailure, Message: "unable to open session channel", Err: err}
	}

	fail := func(msg string, err error) (*sftpClient, error) {
		session.Close()
		return nil, &nbsftp.EngineError{Code: nbsftp.CodeChannelRequestDenied, Message: msg, Err: err}
	}

	wr, err := session.StdinPipe()
	if err != nil {
		return fail("stdin", err)
	}

	rd, err := session.StdoutPipe()
	if err != nil {
		return fail("stdout", err)
	}

	if err := session.RequestSubsystem("sftp"); err != nil {
		return fail("sftp subsystem refused", err)
	}

	maxPacket := e.cfg.MaxPacket
	if maxPacket == 0 {
		maxPacket = sshfx.DefaultMaxPacketLength
	}

	c := &sftpClient{
		engine:    e,
		session:   session,
		rd:        rd,
		wr:        wr,
		maxPacket: maxPacket,
		inflight:  make(map[uint32]chan<- result),
		handles:   make(map[nbsftp.Handle]*handle),
	}

	if err := c.init(); err != nil {
		session.Close()
		return nil, err
	}

	go func() {
		err := c.recvLoop()
		c.disconnect(err)
	}()

	return c, nil
}

func (c *sftpClient) init() error {
	initPkt := &sshfx.InitPacket{
		Version: sshfx.ProtocolVersion,
	}

	if _, err := c.wr.Write(initPkt.MarshalBinary()); err != nil {
		return &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: "sending init", Err: err}
	}

	var raw sshfx.RawPacket
	if err := raw.ReadFrom(c.rd, nil, c.maxPacket); err != nil {
		return &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: "reading version", Err: err}
	}

	if raw.Type != sshfx.PacketTypeVersion {
		return &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: "unexpected packet " + raw.Type.String()}
	}

	if err := c.version.UnmarshalRaw(&raw); err != nil {
		return &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: "decoding version", Err: err}
	}

	if c.version.Version != sshfx.ProtocolVersion {
		return &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: "unsupported server version"}
	}

	return nil
}

// recvLoop reads responses and forwards each to the request waiting for it.
func (c *sftpClient) recvLoop() error {
	for {
		res := result{buf: c.engine.buffers.Get()}

		if err := res.pkt.ReadFrom(c.rd, res.buf, c.maxPacket); err != nil {
			return err
		}

		c.mu.Lock()
		ch, ok := c.inflight[res.pkt.RequestID]
		delete(c.inflight, res.pkt.RequestID)
		c.mu.Unlock()

		if !ok {
			return errors.Errorf("request id not found: %d", res.pkt.RequestID)
		}

		ch <- res
	}
}

// disconnect fails every request still waiting for a response.
func (c *sftpClient) disconnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err == nil {
		c.err = err
	}

	for id, ch := range c.inflight {
		ch <- result{err: errConnectionLost}
		delete(c.inflight, id)
	}
}

// send writes req and waits for the response to it.
func (c *sftpClient) send(req sshfx.Packet) (*result, error) {
	reqid := c.reqid.Add(1)
	header, payload := req.MarshalPacket(reqid)

	ch := make(chan result, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, errConnectionLost
	}

	c.inflight[reqid] = ch
	c.mu.Unlock()

	c.wmu.Lock()
	_, err := c.wr.Write(sshfx.ComposePacket(header, payload))
	c.wmu.Unlock()

	if err != nil {
		c.mu.Lock()
		delete(c.inflight, reqid)
		c.mu.Unlock()

		return nil, &nbsftp.EngineError{Code: nbsftp.CodeChannelClosed, Message: "sending request", Err: err}
	}

	res := <-ch
	if res.err != nil {
		return nil, res.err
	}

	return &res, nil
}

func (c *sftpClient) release(res *result) {
	c.engine.buffers.Put(res.buf)
}

// status records a status response; anything but OK becomes an error.
func (c *sftpClient) status(res *result) error {
	var st sshfx.StatusPacket
	if err := st.UnmarshalPacketBody(&res.pkt.Data); err != nil {
		return c.malformed(err)
	}

	c.lastStatus.Store(uint32(st.StatusCode))

	switch st.StatusCode {
	case sshfx.StatusOK:
		return nil
	case sshfx.StatusEOF:
		return io.EOF
	default:
		return &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: st.Error(), Err: &st}
	}
}

func (c *sftpClient) malformed(err error) error {
	c.lastStatus.Store(uint32(sshfx.StatusBadMessage))
	return &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: "malformed response", Err: err}
}

func (c *sftpClient) unexpected(res *result) error {
	c.lastStatus.Store(uint32(sshfx.StatusBadMessage))
	return &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: "unexpected packet " + res.pkt.Type.String()}
}

// expectStatus sends req and expects SSH_FXP_STATUS back.
func (c *sftpClient) expectStatus(req sshfx.Packet) error {
	res, err := c.send(req)
	if err != nil {
		return err
	}
	defer c.release(res)

	if res.pkt.Type != sshfx.PacketTypeStatus {
		return c.unexpected(res)
	}

	return c.status(res)
}

// expectHandle sends req and expects SSH_FXP_HANDLE back.
func (c *sftpClient) expectHandle(req sshfx.Packet) (nbsftp.Handle, error) {
	res, err := c.send(req)
	if err != nil {
		return "", err
	}
	defer c.release(res)

	switch res.pkt.Type {
	case sshfx.PacketTypeHandle:
		var hp sshfx.HandlePacket
		if err := hp.UnmarshalPacketBody(&res.pkt.Data); err != nil {
			return "", c.malformed(err)
		}

		h := nbsftp.Handle(hp.Handle)

		c.mu.Lock()
		c.handles[h] = new(handle)
		c.mu.Unlock()

		return h, nil

	case sshfx.PacketTypeStatus:
		return "", c.statusFailure(res)

	default:
		return "", c.unexpected(res)
	}
}

// statusFailure reports a status answer to a request expecting something else.
func (c *sftpClient) statusFailure(res *result) error {
	err := c.status(res)
	if err == nil {
		return c.unexpected(res)
	}

	return err
}

// expectName sends req and expects SSH_FXP_NAME back.
func (c *sftpClient) expectName(req sshfx.Packet) ([]*sshfx.NameEntry, error) {
	res, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer c.release(res)

	switch res.pkt.Type {
	case sshfx.PacketTypeName:
		var np sshfx.NamePacket
		if err := np.UnmarshalPacketBody(&res.pkt.Data); err != nil {
			return nil, c.malformed(err)
		}

		return np.Entries, nil

	case sshfx.PacketTypeStatus:
		return nil, c.statusFailure(res)

	default:
		return nil, c.unexpected(res)
	}
}

func (c *sftpClient) handle(h nbsftp.Handle) (*handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.handles[h]
	if !ok {
		c.lastStatus.Store(uint32(sshfx.StatusInvalidHandle))
		return nil, &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: "unknown handle"}
	}

	return st, nil
}

func fileAttrs(a *sshfx.Attributes) nbsftp.FileAttrs {
	return nbsftp.FileAttrs{
		Flags:       a.Flags &^ sshfx.AttrExtended,
		Size:        a.Size,
		UID:         a.UID,
		GID:         a.GID,
		Permissions: uint32(a.Permissions),
		ATime:       a.ATime,
		MTime:       a.MTime,
	}
}

// RealPath canonicalizes p on the server.
func (c *sftpClient) RealPath(p string) (string, error) {
	return do(c.engine, callKey("realpath", p), func() (string, error) {
		entries, err := c.expectName(&sshfx.PathPacket{PacketType: sshfx.PacketTypeRealpath, Path: p})
		if err != nil {
			return "", err
		}

		if len(entries) != 1 {
			return "", c.malformed(errors.Errorf("realpath returned %d names", len(entries)))
		}

		c.lastStatus.Store(uint32(sshfx.StatusOK))
		return entries[0].Filename, nil
	})
}

// Stat returns the attributes of p, of the link itself unless followLinks.
func (c *sftpClient) Stat(p string, followLinks bool) (nbsftp.FileAttrs, error) {
	return do(c.engine, callKey("stat", p, followLinks), func() (nbsftp.FileAttrs, error) {
		typ := sshfx.PacketTypeLstat
		if followLinks {
			typ = sshfx.PacketTypeStat
		}

		res, err := c.send(&sshfx.PathPacket{PacketType: typ, Path: p})
		if err != nil {
			return nbsftp.FileAttrs{}, err
		}
		defer c.release(res)

		switch res.pkt.Type {
		case sshfx.PacketTypeAttrs:
			var ap sshfx.AttrsPacket
			if err := ap.UnmarshalPacketBody(&res.pkt.Data); err != nil {
				return nbsftp.FileAttrs{}, c.malformed(err)
			}

			c.lastStatus.Store(uint32(sshfx.StatusOK))
			return fileAttrs(&ap.Attrs), nil

		case sshfx.PacketTypeStatus:
			return nbsftp.FileAttrs{}, c.statusFailure(res)

		default:
			return nbsftp.FileAttrs{}, c.unexpected(res)
		}
	})
}

// pflags maps open flags onto SSH_FXF_* bits.
func pflags(flags nbsftp.OpenFlag) uint32 {
	var pf uint32

	for _, m := range []struct {
		flag nbsftp.OpenFlag
		bit  uint32
	}{
		{nbsftp.OpenRead, sshfx.FlagRead},
		{nbsftp.OpenWrite, sshfx.FlagWrite},
		{nbsftp.OpenAppend, sshfx.FlagAppend},
		{nbsftp.OpenCreate, sshfx.FlagCreate},
		{nbsftp.OpenTruncate, sshfx.FlagTruncate},
		{nbsftp.OpenExclusive, sshfx.FlagExclusive},
	} {
		if flags&m.flag != 0 {
			pf |= m.bit
		}
	}

	return pf
}

// Open opens the file p. perm applies when the file gets created.
func (c *sftpClient) Open(p string, flags nbsftp.OpenFlag, perm uint32) (nbsftp.Handle, error) {
	return doDiscard(c.engine, callKey("open", p, uint32(flags), perm), func() (nbsftp.Handle, error) {
		req := &sshfx.OpenPacket{
			Filename: p,
			PFlags:   pflags(flags),
		}

		if flags&nbsftp.OpenCreate != 0 {
			req.Attrs.Flags = sshfx.AttrPermissions
			req.Attrs.Permissions = sshfx.FileMode(perm)
		}

		return c.expectHandle(req)
	}, c.closeAbandoned)
}

// OpenDir opens the directory p for reading.
func (c *sftpClient) OpenDir(p string) (nbsftp.Handle, error) {
	return doDiscard(c.engine, callKey("opendir", p), func() (nbsftp.Handle, error) {
		return c.expectHandle(&sshfx.PathPacket{PacketType: sshfx.PacketTypeOpendir, Path: p})
	}, c.closeAbandoned)
}

// closeAbandoned closes a handle whose open was given up on.
func (c *sftpClient) closeAbandoned(h nbsftp.Handle) {
	c.forget(h)

	if err := c.expectStatus(&sshfx.HandleRequestPacket{PacketType: sshfx.PacketTypeClose, Handle: string(h)}); err != nil {
		c.engine.log.Debug().Err(err).Str("handle", string(h)).Msg("closing abandoned handle")
	}
}

func (c *sftpClient) forget(h nbsftp.Handle) {
	c.mu.Lock()
	delete(c.handles, h)
	c.mu.Unlock()
}

// Read reads from the handle's current offset.
func (c *sftpClient) Read(h nbsftp.Handle, b []byte) (int, error) {
	st, err := c.handle(h)
	if err != nil {
		return 0, err
	}

	length := len(b)
	if length > sshfx.DefaultMaxDataLength {
		length = sshfx.DefaultMaxDataLength
	}

	offset := st.offset

	data, err := do(c.engine, callKey("read", h, offset, length), func() ([]byte, error) {
		res, err := c.send(&sshfx.ReadPacket{Handle: string(h), Offset: offset, Len: uint32(length)})
		if err != nil {
			return nil, err
		}
		defer c.release(res)

		switch res.pkt.Type {
		case sshfx.PacketTypeData:
			var dp sshfx.DataPacket
			if err := dp.UnmarshalPacketBody(&res.pkt.Data); err != nil {
				return nil, c.malformed(err)
			}

			if len(dp.Data) > length {
				return nil, c.malformed(errors.New("more data than requested"))
			}

			c.lastStatus.Store(uint32(sshfx.StatusOK))
			return append([]byte(nil), dp.Data...), nil

		case sshfx.PacketTypeStatus:
			return nil, c.statusFailure(res)

		default:
			return nil, c.unexpected(res)
		}
	})
	if err != nil {
		return 0, err
	}

	n := copy(b, data)
	st.offset += uint64(n)

	return n, nil
}

// Write writes at the handle's current offset.
func (c *sftpClient) Write(h nbsftp.Handle, b []byte) (int, error) {
	st, err := c.handle(h)
	if err != nil {
		return 0, err
	}

	if len(b) > sshfx.DefaultMaxDataLength {
		b = b[:sshfx.DefaultMaxDataLength]
	}

	offset := st.offset
	data := append([]byte(nil), b...)

	n, err := do(c.engine, callKey("write", h, offset, len(data)), func() (int, error) {
		if err := c.expectStatus(&sshfx.WritePacket{Handle: string(h), Offset: offset, Data: data}); err != nil {
			return 0, err
		}

		return len(data), nil
	})
	if err != nil {
		return 0, err
	}

	st.offset += uint64(n)

	return n, nil
}

// Seek moves the handle's offset. It needs no round trip.
func (c *sftpClient) Seek(h nbsftp.Handle, offset uint64) {
	if st, err := c.handle(h); err == nil {
		st.offset = offset
	}
}

// ReadDir returns the next entry of a directory handle, fetching a batch when
// the buffered ones run out.
func (c *sftpClient) ReadDir(h nbsftp.Handle) (string, nbsftp.FileAttrs, error) {
	st, err := c.handle(h)
	if err != nil {
		return "", nbsftp.FileAttrs{}, err
	}

	for len(st.entries) == 0 {
		if st.eof {
			return "", nbsftp.FileAttrs{}, io.EOF
		}

		entries, err := do(c.engine, callKey("readdir", h), func() ([]*sshfx.NameEntry, error) {
			entries, err := c.expectName(&sshfx.HandleRequestPacket{PacketType: sshfx.PacketTypeReaddir, Handle: string(h)})
			if err == nil {
				c.lastStatus.Store(uint32(sshfx.StatusOK))
			}
			return entries, err
		})

		switch {
		case errors.Is(err, io.EOF):
			st.eof = true
		case err != nil:
			return "", nbsftp.FileAttrs{}, err
		default:
			st.entries = entries
		}
	}

	e := st.entries[0]
	st.entries = st.entries[1:]

	return e.Filename, fileAttrs(&e.Attrs), nil
}

// Close closes the handle. The client forgets it as soon as the request is
// made, even when the server objects or the close is abandoned.
func (c *sftpClient) Close(h nbsftp.Handle) error {
	c.forget(h)

	_, err := do(c.engine, callKey("close", h), func() (struct{}, error) {
		return struct{}{}, c.expectStatus(&sshfx.HandleRequestPacket{PacketType: sshfx.PacketTypeClose, Handle: string(h)})
	})

	return err
}

// Mkdir creates the directory p.
func (c *sftpClient) Mkdir(p string, perm uint32) error {
	_, err := do(c.engine, callKey("mkdir", p, perm), func() (struct{}, error) {
		req := &sshfx.MkdirPacket{Path: p}
		req.Attrs.Flags = sshfx.AttrPermissions
		req.Attrs.Permissions = sshfx.FileMode(perm)

		return struct{}{}, c.expectStatus(req)
	})

	return err
}

// Rmdir removes the empty directory p.
func (c *sftpClient) Rmdir(p string) error {
	_, err := do(c.engine, callKey("rmdir", p), func() (struct{}, error) {
		return struct{}{}, c.expectStatus(&sshfx.PathPacket{PacketType: sshfx.PacketTypeRmdir, Path: p})
	})

	return err
}

// Unlink removes the file p.
func (c *sftpClient) Unlink(p string) error {
	_, err := do(c.engine, callKey("remove", p), func() (struct{}, error) {
		return struct{}{}, c.expectStatus(&sshfx.PathPacket{PacketType: sshfx.PacketTypeRemove, Path: p})
	})

	return err
}

// Rename moves oldPath to newPath. Version 3 servers refuse to replace an
// existing target, so with RenameOverwrite a failed rename removes newPath
// and tries once more.
func (c *sftpClient) Rename(oldPath, newPath string, flags nbsftp.RenameFlag) error {
	_, err := do(c.engine, callKey("rename", oldPath, newPath, uint32(flags)), func() (struct{}, error) {
		req := &sshfx.RenamePacket{OldPath: oldPath, NewPath: newPath}

		err := c.expectStatus(req)
		if err == nil || flags&nbsftp.RenameOverwrite == 0 {
			return struct{}{}, err
		}

		if rmErr := c.expectStatus(&sshfx.PathPacket{PacketType: sshfx.PacketTypeRemove, Path: newPath}); rmErr != nil {
			return struct{}{}, err
		}

		return struct{}{}, c.expectStatus(req)
	})

	return err
}

// PosixRename renames with the posix-rename@openssh.com extension, which
// replaces newPath atomically. Servers not advertising it report OpUnsupported.
func (c *sftpClient) PosixRename(oldPath, newPath string) error {
	if !c.version.Has(openssh.ExtensionPosixRename) {
		c.lastStatus.Store(uint32(sshfx.StatusOPUnsupported))
		return &nbsftp.EngineError{Code: nbsftp.CodeSFTPProtocol, Message: "posix-rename not supported"}
	}

	_, err := do(c.engine, callKey("posix-rename", oldPath, newPath), func() (struct{}, error) {
		return struct{}{}, c.expectStatus(&openssh.PosixRenameExtendedPacket{OldPath: oldPath, NewPath: newPath})
	})

	return err
}

// LastStatus returns the SSH_FX code of the last status the server sent.
func (c *sftpClient) LastStatus() uint32 {
	return c.lastStatus.Load()
}

// Shutdown closes the session channel.
func (c *sftpClient) Shutdown() error {
	_, err := do(c.engine, callKey("sftp-shutdown"), func() (struct{}, error) {
		c.wr.Close()

		if err := c.session.Close(); err != nil && !errors.Is(err, io.EOF) {
			return struct{}{}, &nbsftp.EngineError{Code: nbsftp.CodeChannelFailure, Message: "closing sftp channel", Err: err}
		}

		return struct{}{}, nil
	})

	return err
}
