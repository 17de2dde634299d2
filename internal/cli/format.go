package cli

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/nbsftp"
)

const lsTimeFormat = "Jan _2 15:04"

// visible drops the "." and ".." entries of a listing and sorts it by name.
func visible(listing []nbsftp.Attributes) []nbsftp.Attributes {
	out := make([]nbsftp.Attributes, 0, len(listing))
	for _, a := range listing {
		if name := a.Name(); name == "." || name == ".." {
			continue
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	return out
}

// longLine formats fi the way ls -l does, without link counts.
func longLine(fi fs.FileInfo, name string) string {
	mtime := "-"
	if !fi.ModTime().IsZero() {
		mtime = fi.ModTime().Format(lsTimeFormat)
	}

	return fmt.Sprintf("%s %10d %s %s", fi.Mode(), fi.Size(), mtime, name)
}

func optional[T any](v *T, format func(T) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func writeStat(w io.Writer, a nbsftp.Attributes) {
	fmt.Fprintf(w, "Path:     %s\n", a.Path)
	fmt.Fprintf(w, "Type:     %s\n", optional(a.Type, nbsftp.FileType.String))
	fmt.Fprintf(w, "Size:     %s\n", optional(a.Size, func(v uint64) string { return strconv.FormatUint(v, 10) }))
	fmt.Fprintf(w, "Mode:     %s\n", optional(a.Permissions, func(v fs.FileMode) string { return fmt.Sprintf("%04o", uint32(v)) }))
	fmt.Fprintf(w, "Uid:      %s\n", optional(a.UserID, func(v uint64) string { return strconv.FormatUint(v, 10) }))
	fmt.Fprintf(w, "Gid:      %s\n", optional(a.GroupID, func(v uint64) string { return strconv.FormatUint(v, 10) }))
	fmt.Fprintf(w, "Access:   %s\n", optional(a.AccessTime, formatTime))
	fmt.Fprintf(w, "Modify:   %s\n", optional(a.ModificationTime, formatTime))
}

// fingerprint formats a host key hash the way ssh-keygen -l does.
func fingerprint(sum [sha256.Size]byte) string {
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:])
}

func writeInfo(w io.Writer, info nbsftp.SessionInfo) {
	m := info.Methods

	fmt.Fprintf(w, "Host key:       %s %s\n", info.HostKey.Type, fingerprint(info.HostKey.SHA256))
	fmt.Fprintf(w, "Key exchange:   %s\n", m.KeyExchange)
	fmt.Fprintf(w, "Host key algo:  %s\n", m.HostKeyAlgorithm)
	fmt.Fprintf(w, "Cipher:         %s / %s\n", m.CipherClientToServer, m.CipherServerToClient)
	fmt.Fprintf(w, "MAC:            %s / %s\n", orImplicit(m.MACClientToServer), orImplicit(m.MACServerToClient))
	fmt.Fprintf(w, "Compression:    %s / %s\n", m.CompressionClientToServer, m.CompressionServerToClient)
}

// orImplicit names the MAC of AEAD ciphers.
func orImplicit(mac string) string {
	if mac == "" {
		return "implicit"
	}
	return mac
}
