package codec

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	errcat "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-billy.v4/osfs"

	hdx "github.com/BobKerns/houdini-expand"
	"github.com/BobKerns/houdini-expand/testutil"
)

func decodeCause(err error) string {
	e, ok := err.(errcat.Error)
	if !ok {
		return ""
	}
	return e.Details()["cause"]
}

// sum is an independent digest computation, deliberately not using the
// codec's own accumulator type.
func sum(chunks ...string) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func TestEncodeFixtures(t *testing.T) {
	Convey("Encoding produces bit-exact known streams", t, func() {
		Convey("a tree with one two-byte file", func() {
			testutil.WithTmpdir(func(tmpDir string) {
				afs := osfs.New(tmpDir)
				testutil.PlaceFile(afs, "a.txt", []byte("hi"))

				var buf bytes.Buffer
				dgst, err := Encode(context.Background(), afs, &buf, hdx.Monitor{})
				So(err, ShouldBeNil)

				dirFrame := "\n--------\ntype:directory\nname:.\n--------\n"
				fileFrame := fmt.Sprintf("\n--------\ntype:file\nname:a.txt\nsha256:%s\nlength:2\n--------\n", sum("hi"))
				footerFrame := fmt.Sprintf("\n--------\ntype:footer\nsha:%s\n--------\n", sum(dirFrame, fileFrame))
				So(buf.String(), ShouldEqual, dirFrame+fileFrame+"hi\n"+footerFrame)
				So(string(dgst), ShouldEqual, sum(dirFrame, fileFrame, footerFrame))
			})
		})

		Convey("an empty directory is exactly a directory header plus a footer", func() {
			testutil.WithTmpdir(func(tmpDir string) {
				afs := osfs.New(tmpDir)

				var buf bytes.Buffer
				_, err := Encode(context.Background(), afs, &buf, hdx.Monitor{})
				So(err, ShouldBeNil)

				dirFrame := "\n--------\ntype:directory\nname:.\n--------\n"
				footerFrame := fmt.Sprintf("\n--------\ntype:footer\nsha:%s\n--------\n", sum(dirFrame))
				So(buf.String(), ShouldEqual, dirFrame+footerFrame)
			})
		})
	})
}

// placeFixtureTree lays out the standard round-trip fixture: files of
// assorted shapes (empty, binary, sentinel-lookalike content), nested and
// empty directories, and symlinks within the tree.
func placeFixtureTree(tmpDir string) {
	bfs := osfs.New(tmpDir)
	binary := make([]byte, 256)
	for i := range binary {
		binary[i] = byte(i)
	}
	testutil.PlaceFile(bfs, "a.txt", []byte("hi"))
	testutil.PlaceFile(bfs, "empty", nil)
	testutil.PlaceFile(bfs, "trap", []byte("\n--------\ntype:file\nname:x\n--------\n"))
	testutil.PlaceFile(bfs, "blob.bin", binary)
	testutil.PlaceFile(bfs, "sub/inner.txt", []byte("inner\n"))
	testutil.PlaceFile(bfs, "sub/deep/leaf", []byte("leaf"))
	testutil.PlaceDir(bfs, "emptydir")
	testutil.PlaceSymlink(bfs, "link", "a.txt")
	testutil.PlaceSymlink(bfs, "sub/uplink", "../a.txt")
}

func TestRoundTrip(t *testing.T) {
	Convey("Round trip: decode(encode(tree)) reproduces the tree", t, func() {
		testutil.WithTmpdir(func(srcDir string) {
			placeFixtureTree(srcDir)
			src := osfs.New(srcDir)

			var buf bytes.Buffer
			encDigest, err := Encode(context.Background(), src, &buf, hdx.Monitor{})
			So(err, ShouldBeNil)

			testutil.WithTmpdir(func(destDir string) {
				dest := osfs.New(destDir)
				decDigest, err := Decode(context.Background(), dest, bytes.NewReader(buf.Bytes()), hdx.Monitor{})
				So(err, ShouldBeNil)
				So(decDigest, ShouldEqual, encDigest)

				So(string(testutil.ShouldReadFile(dest, "a.txt")), ShouldEqual, "hi")
				So(testutil.ShouldReadFile(dest, "empty"), ShouldHaveLength, 0)
				So(string(testutil.ShouldReadFile(dest, "trap")), ShouldEqual, "\n--------\ntype:file\nname:x\n--------\n")
				So(testutil.ShouldReadFile(dest, "blob.bin"), ShouldHaveLength, 256)
				So(string(testutil.ShouldReadFile(dest, "sub/inner.txt")), ShouldEqual, "inner\n")
				So(string(testutil.ShouldReadFile(dest, "sub/deep/leaf")), ShouldEqual, "leaf")
				stat, err := dest.Stat("emptydir")
				So(err, ShouldBeNil)
				So(stat.IsDir(), ShouldBeTrue)
				So(testutil.ShouldReadlink(dest, "link"), ShouldEqual, "a.txt")
				So(testutil.ShouldReadlink(dest, "sub/uplink"), ShouldEqual, "../a.txt")

				Convey("and re-encoding the decoded tree yields the identical stream", func() {
					var buf2 bytes.Buffer
					reDigest, err := Encode(context.Background(), dest, &buf2, hdx.Monitor{})
					So(err, ShouldBeNil)
					So(reDigest, ShouldEqual, encDigest)
					So(bytes.Equal(buf2.Bytes(), buf.Bytes()), ShouldBeTrue)
				})
			})
		})
	})
}

func TestDeterminism(t *testing.T) {
	Convey("Encoding the same tree twice yields byte-identical streams", t, func() {
		testutil.WithTmpdir(func(srcDir string) {
			placeFixtureTree(srcDir)
			src := osfs.New(srcDir)

			var one, two bytes.Buffer
			d1, err := Encode(context.Background(), src, &one, hdx.Monitor{})
			So(err, ShouldBeNil)
			d2, err := Encode(context.Background(), src, &two, hdx.Monitor{})
			So(err, ShouldBeNil)
			So(d1, ShouldEqual, d2)
			So(bytes.Equal(one.Bytes(), two.Bytes()), ShouldBeTrue)
		})
	})
}

func TestTamperDetection(t *testing.T) {
	Convey("Tampering with a stream is caught on decode", t, func() {
		testutil.WithTmpdir(func(srcDir string) {
			src := osfs.New(srcDir)
			testutil.PlaceFile(src, "a.txt", []byte("hello world"))
			testutil.PlaceFile(src, "b.txt", []byte("second file"))

			var buf bytes.Buffer
			_, err := Encode(context.Background(), src, &buf, hdx.Monitor{})
			So(err, ShouldBeNil)
			stream := buf.Bytes()

			Convey("flipping one payload byte is a hash mismatch", func() {
				tampered := bytes.Replace(stream, []byte("hello world\n"), []byte("hello w0rld\n"), 1)
				So(bytes.Equal(tampered, stream), ShouldBeFalse)
				testutil.WithTmpdir(func(destDir string) {
					_, err := Decode(context.Background(), osfs.New(destDir), bytes.NewReader(tampered), hdx.Monitor{})
					So(errcat.Category(err), ShouldEqual, hdx.ErrDecodeFailed)
					So(decodeCause(err), ShouldEqual, string(hdx.ErrHashMismatch))
				})
			})

			Convey("editing a header field breaks the enclosing scope's footer", func() {
				tampered := bytes.Replace(stream, []byte("name:b.txt"), []byte("name:c.txt"), 1)
				So(bytes.Equal(tampered, stream), ShouldBeFalse)
				testutil.WithTmpdir(func(destDir string) {
					_, err := Decode(context.Background(), osfs.New(destDir), bytes.NewReader(tampered), hdx.Monitor{})
					So(errcat.Category(err), ShouldEqual, hdx.ErrDecodeFailed)
					So(decodeCause(err), ShouldEqual, string(hdx.ErrHashMismatch))
				})
			})

			Convey("truncating before the final footer is a truncation error", func() {
				testutil.WithTmpdir(func(destDir string) {
					_, err := Decode(context.Background(), osfs.New(destDir), bytes.NewReader(stream[:len(stream)-20]), hdx.Monitor{})
					So(errcat.Category(err), ShouldEqual, hdx.ErrDecodeFailed)
					So(decodeCause(err), ShouldEqual, string(hdx.ErrTruncatedStream))
				})
			})

			Convey("truncating inside a payload is a truncation error", func() {
				cut := bytes.Index(stream, []byte("hello world"))
				So(cut, ShouldBeGreaterThan, 0)
				testutil.WithTmpdir(func(destDir string) {
					_, err := Decode(context.Background(), osfs.New(destDir), bytes.NewReader(stream[:cut+3]), hdx.Monitor{})
					So(errcat.Category(err), ShouldEqual, hdx.ErrDecodeFailed)
					So(decodeCause(err), ShouldEqual, string(hdx.ErrTruncatedStream))
				})
			})

			Convey("an empty stream is a truncation error", func() {
				testutil.WithTmpdir(func(destDir string) {
					_, err := Decode(context.Background(), osfs.New(destDir), strings.NewReader(""), hdx.Monitor{})
					So(errcat.Category(err), ShouldEqual, hdx.ErrDecodeFailed)
					So(decodeCause(err), ShouldEqual, string(hdx.ErrTruncatedStream))
				})
			})
		})
	})
}

func TestSymlinkEscapeRejection(t *testing.T) {
	Convey("Symlinks leaving the tree root fail the encode", t, func() {
		Convey("relative escape", func() {
			testutil.WithTmpdir(func(srcDir string) {
				src := osfs.New(srcDir)
				testutil.PlaceSymlink(src, "evil", "../../etc/passwd")
				var buf bytes.Buffer
				_, err := Encode(context.Background(), src, &buf, hdx.Monitor{})
				So(errcat.Category(err), ShouldEqual, hdx.ErrPathEscape)
			})
		})
		Convey("absolute target", func() {
			testutil.WithTmpdir(func(srcDir string) {
				src := osfs.New(srcDir)
				testutil.PlaceSymlink(src, "evil", "/etc/passwd")
				var buf bytes.Buffer
				_, err := Encode(context.Background(), src, &buf, hdx.Monitor{})
				So(errcat.Category(err), ShouldEqual, hdx.ErrPathEscape)
			})
		})
	})
}

func TestDecodeHostileNames(t *testing.T) {
	Convey("Decoding a stream whose names climb out of the root fails", t, func() {
		dirFrame := "\n--------\ntype:directory\nname:.\n--------\n"
		fileFrame := fmt.Sprintf("\n--------\ntype:file\nname:../escape\nsha256:%s\nlength:2\n--------\n", sum("hi"))
		stream := dirFrame + fileFrame + "hi\n"
		testutil.WithTmpdir(func(destDir string) {
			_, err := Decode(context.Background(), osfs.New(destDir), strings.NewReader(stream), hdx.Monitor{})
			So(errcat.Category(err), ShouldEqual, hdx.ErrDecodeFailed)
			So(decodeCause(err), ShouldEqual, string(hdx.ErrPathEscape))
		})
	})
}

func TestMetadataPrefix(t *testing.T) {
	Convey("A metadata entry may prefix the stream and is ignored", t, func() {
		testutil.WithTmpdir(func(srcDir string) {
			src := osfs.New(srcDir)
			testutil.PlaceFile(src, "a.txt", []byte("hi"))

			var buf bytes.Buffer
			So(WriteMetadata(&buf, NewMetadata("thing.hda")), ShouldBeNil)
			encDigest, err := Encode(context.Background(), src, &buf, hdx.Monitor{})
			So(err, ShouldBeNil)

			testutil.WithTmpdir(func(destDir string) {
				dest := osfs.New(destDir)
				decDigest, err := Decode(context.Background(), dest, bytes.NewReader(buf.Bytes()), hdx.Monitor{})
				So(err, ShouldBeNil)
				So(decDigest, ShouldEqual, encDigest)
				So(string(testutil.ShouldReadFile(dest, "a.txt")), ShouldEqual, "hi")
			})
		})
	})
}
