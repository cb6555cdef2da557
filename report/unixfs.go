package report

import (
	"github.com/ipfs/go-cid"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// DefaultChunkSize is the fixed-size chunker default of IPFS importers.
	DefaultChunkSize = 256 * 1024
	// DefaultMaxLinks is the balanced layout fan-out.
	DefaultMaxLinks = 174

	unixfsTypeFile = 2
)

// fileBuilder reproduces the UnixFS file DAG an IPFS node builds with the
// balanced layout and a fixed-size chunker.
type fileBuilder struct {
	prefix    cid.Prefix
	rawLeaves bool
	chunkSize int
	maxLinks  int
}

type dagNode struct {
	c        cid.Cid
	block    []byte
	tsize    uint64
	filesize uint64
}

func (b *fileBuilder) chunks(data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for off := 0; off < len(data); off += b.chunkSize {
		end := off + b.chunkSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[off:end])
	}
	return out
}

func (b *fileBuilder) sum(codec uint64, block []byte) (cid.Cid, error) {
	p := b.prefix
	p.Codec = codec
	return p.Sum(block)
}

func (b *fileBuilder) leaf(chunk []byte) (dagNode, error) {
	if b.rawLeaves {
		c, err := b.sum(cid.Raw, chunk)
		return dagNode{c: c, block: chunk, tsize: uint64(len(chunk)), filesize: uint64(len(chunk))}, err
	}
	block := encodePBNode(nil, encodeUnixfsFile(chunk, uint64(len(chunk)), nil))
	c, err := b.sum(cid.DagProtobuf, block)
	return dagNode{c: c, block: block, tsize: uint64(len(block)), filesize: uint64(len(chunk))}, err
}

func (b *fileBuilder) parent(children []dagNode) (dagNode, error) {
	var filesize, tsize uint64
	sizes := make([]uint64, len(children))
	for i, ch := range children {
		sizes[i] = ch.filesize
		filesize += ch.filesize
		tsize += ch.tsize
	}
	block := encodePBNode(children, encodeUnixfsFile(nil, filesize, sizes))
	c, err := b.sum(cid.DagProtobuf, block)
	return dagNode{c: c, block: block, tsize: tsize + uint64(len(block)), filesize: filesize}, err
}

// Build returns the root of the file DAG. A file of one chunk is its own root.
func (b *fileBuilder) Build(data []byte) (dagNode, error) {
	var level []dagNode
	for _, chunk := range b.chunks(data) {
		n, err := b.leaf(chunk)
		if err != nil {
			return dagNode{}, err
		}
		level = append(level, n)
	}
	for len(level) > 1 {
		var next []dagNode
		for off := 0; off < len(level); off += b.maxLinks {
			end := off + b.maxLinks
			if end > len(level) {
				end = len(level)
			}
			n, err := b.parent(level[off:end])
			if err != nil {
				return dagNode{}, err
			}
			next = append(next, n)
		}
		level = next
	}
	return level[0], nil
}

// encodeUnixfsFile writes the unixfs Data message of a file node.
func encodeUnixfsFile(data []byte, filesize uint64, blocksizes []uint64) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, unixfsTypeFile)
	if len(data) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, data)
	}
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, filesize)
	for _, s := range blocksizes {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, s)
	}
	return b
}

// encodePBNode writes a dag-pb PBNode in canonical order: links, then data.
func encodePBNode(links []dagNode, data []byte) []byte {
	var b []byte
	for _, l := range links {
		var link []byte
		link = protowire.AppendTag(link, 1, protowire.BytesType)
		link = protowire.AppendBytes(link, l.c.Bytes())
		link = protowire.AppendTag(link, 2, protowire.BytesType)
		link = protowire.AppendString(link, "")
		link = protowire.AppendTag(link, 3, protowire.VarintType)
		link = protowire.AppendVarint(link, l.tsize)

		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, link)
	}
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	return b
}
