package houdini

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/BobKerns/houdini-expand/testutil"
)

func TestLocationSearch(t *testing.T) {
	Convey("Converter discovery", t, func() {
		testutil.WithTmpdir(func(tmpDir string) {
			place := func(rel string) {
				pth := filepath.Join(tmpDir, rel)
				So(os.MkdirAll(filepath.Dir(pth), 0755), ShouldBeNil)
				So(os.WriteFile(pth, []byte("#!/bin/sh\n"), 0755), ShouldBeNil)
			}
			place("hfs19.5.640/bin/hotl")
			place("hfs20.0.506/bin/hotl")
			So(os.MkdirAll(filepath.Join(tmpDir, "hfs20.5.101/bin"), 0755), ShouldBeNil) // install without hotl

			platformLocations["testos"] = []location{
				{dir: tmpDir, glob: "hfs*", subpath: "bin/hotl"},
			}
			defer delete(platformLocations, "testos")

			Convey("lists all candidates newest first, marking existence", func() {
				got := locationsFor("testos")
				So(got, ShouldHaveLength, 3)
				So(got[0].Path, ShouldEqual, filepath.Join(tmpDir, "hfs20.5.101/bin/hotl"))
				So(got[0].Exists, ShouldBeFalse)
				So(got[1].Path, ShouldEqual, filepath.Join(tmpDir, "hfs20.0.506/bin/hotl"))
				So(got[1].Exists, ShouldBeTrue)
				So(got[2].Path, ShouldEqual, filepath.Join(tmpDir, "hfs19.5.640/bin/hotl"))
				So(got[2].Exists, ShouldBeTrue)
			})

			Convey("an unknown platform yields nothing", func() {
				So(locationsFor("plan9"), ShouldHaveLength, 0)
			})
		})
	})
}
