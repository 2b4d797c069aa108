package gitutil

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/BobKerns/houdini-expand/testutil"
)

func TestGlobalConfig(t *testing.T) {
	Convey("Global config round-trips through the file", t, func() {
		testutil.WithTmpdir(func(tmpDir string) {
			pth := filepath.Join(tmpDir, "gitconfig")
			os.Setenv("GIT_CONFIG_GLOBAL", pth)
			defer os.Unsetenv("GIT_CONFIG_GLOBAL")

			Convey("an unset key reads as empty without a file", func() {
				v, err := GetConfig(nil, "hdafilter.hotl")
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "")
			})

			Convey("set then get, plain and subsectioned keys", func() {
				So(SetGlobalConfig("hdafilter.hotl", "/opt/hfs20.0/bin/hotl"), ShouldBeNil)
				So(SetGlobalConfig("filter.hda.clean", "houdini-expand clean %f"), ShouldBeNil)
				So(SetGlobalConfig("filter.hda.required", "true"), ShouldBeNil)

				v, err := GetConfig(nil, "hdafilter.hotl")
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "/opt/hfs20.0/bin/hotl")
				v, err = GetConfig(nil, "filter.hda.clean")
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "houdini-expand clean %f")
				v, err = GetConfig(nil, "filter.hda.required")
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "true")
			})

			Convey("a second write keeps earlier keys", func() {
				So(SetGlobalConfig("hdafilter.hotl", "/a"), ShouldBeNil)
				So(SetGlobalConfig("filter.hda.smudge", "houdini-expand smudge %f"), ShouldBeNil)
				v, err := GetConfig(nil, "hdafilter.hotl")
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "/a")
			})
		})
	})
}

func TestFilterLookup(t *testing.T) {
	Convey("Filter lookup from config", t, func() {
		testutil.WithTmpdir(func(tmpDir string) {
			os.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(tmpDir, "gitconfig"))
			defer os.Unsetenv("GIT_CONFIG_GLOBAL")

			Convey("unconfigured filter reports absent", func() {
				_, ok, err := LookupFilter(nil, "lfs")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})

			Convey("configured filter comes back with both commands", func() {
				So(SetGlobalConfig("filter.lfs.clean", "git-lfs clean -- %f"), ShouldBeNil)
				So(SetGlobalConfig("filter.lfs.smudge", "git-lfs smudge -- %f"), ShouldBeNil)
				f, ok, err := LookupFilter(nil, "lfs")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(f.Clean, ShouldEqual, "git-lfs clean -- %f")
				So(f.command(f.Smudge, "thing.hda"), ShouldResemble,
					[]string{"git-lfs", "smudge", "--", "thing.hda"})
			})
		})
	})
}
