package testutil

import (
	"io"
	"path"

	"github.com/smartystreets/goconvey/convey"
	billy "gopkg.in/src-d/go-billy.v4"
)

// Fixture placement helpers.  All of them assert success via convey, so
// fixture bugs read as test failures rather than panics.

func PlaceFile(afs billy.Filesystem, name string, body []byte) {
	convey.So(afs.MkdirAll(path.Dir(name), 0755), convey.ShouldBeNil)
	f, err := afs.Create(name)
	convey.So(err, convey.ShouldBeNil)
	_, err = f.Write(body)
	convey.So(err, convey.ShouldBeNil)
	convey.So(f.Close(), convey.ShouldBeNil)
}

func PlaceDir(afs billy.Filesystem, name string) {
	convey.So(afs.MkdirAll(name, 0755), convey.ShouldBeNil)
}

func PlaceSymlink(afs billy.Filesystem, name, target string) {
	convey.So(afs.MkdirAll(path.Dir(name), 0755), convey.ShouldBeNil)
	convey.So(afs.Symlink(target, name), convey.ShouldBeNil)
}

func ShouldReadFile(afs billy.Filesystem, name string) []byte {
	f, err := afs.Open(name)
	convey.So(err, convey.ShouldBeNil)
	defer f.Close()
	body, err := io.ReadAll(f)
	convey.So(err, convey.ShouldBeNil)
	return body
}

func ShouldReadlink(afs billy.Filesystem, name string) string {
	target, err := afs.Readlink(name)
	convey.So(err, convey.ShouldBeNil)
	return target
}
