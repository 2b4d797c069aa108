package session

import (
	"bytes"
	"os"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	hdx "github.com/BobKerns/houdini-expand"
	"github.com/BobKerns/houdini-expand/config"
	"github.com/BobKerns/houdini-expand/testutil"
)

func TestSessionLifecycle(t *testing.T) {
	Convey("Session workspaces", t, func() {
		testutil.WithTmpdir(func(tmpDir string) {
			cfg := config.Config{Scratch: tmpDir}

			Convey("are created under the scratch base and removed on Close", func() {
				s, err := New(cfg, hdx.Monitor{})
				So(err, ShouldBeNil)
				So(strings.HasPrefix(s.BlobPath(), tmpDir), ShouldBeTrue)
				stat, err := os.Stat(s.TreePath())
				So(err, ShouldBeNil)
				So(stat.IsDir(), ShouldBeTrue)

				So(s.Close(), ShouldBeNil)
				_, err = os.Stat(s.TreePath())
				So(os.IsNotExist(err), ShouldBeTrue)
			})

			Convey("two sessions never collide", func() {
				s1, err := New(cfg, hdx.Monitor{})
				So(err, ShouldBeNil)
				defer s1.Close()
				s2, err := New(cfg, hdx.Monitor{})
				So(err, ShouldBeNil)
				defer s2.Close()
				So(s1.BlobPath(), ShouldNotEqual, s2.BlobPath())
			})

			Convey("blobs round-trip through the workspace", func() {
				s, err := New(cfg, hdx.Monitor{})
				So(err, ShouldBeNil)
				defer s.Close()

				n, err := s.StageBlob(strings.NewReader("binary\x00payload"))
				So(err, ShouldBeNil)
				So(n, ShouldEqual, int64(14))

				var out bytes.Buffer
				n, err = s.EmitBlob(&out)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, int64(14))
				So(out.String(), ShouldEqual, "binary\x00payload")
			})
		})
	})
}
