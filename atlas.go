package hdx

import (
	"time"

	"github.com/polydawn/refmt/obj/atlas"
)

// Atlas for serializing Event streams (the CLI's `--format json` output).
var Atlas = atlas.MustBuild(
	atlas.BuildEntry(Event{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Event_Log{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Event_Result{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(time.Time{}).Transform().
		TransformMarshal(atlas.MakeMarshalTransformFunc(
			func(t time.Time) (string, error) {
				return t.Format(time.RFC3339), nil
			})).
		TransformUnmarshal(atlas.MakeUnmarshalTransformFunc(
			func(s string) (time.Time, error) {
				return time.Parse(time.RFC3339, s)
			})).
		Complete(),
)
