package archive

import (
	"fmt"
	"strings"
)

const ManifestName = "ffmpeg_command.txt"

type encodeTemplate struct {
	title  string
	args   []string
	suffix string
}

var encodeTemplates = []encodeTemplate{
	{
		title:  "ProRes 422 HQ (10-bit, Resolve-friendly)",
		args:   []string{"-c:v", "prores_ks", "-profile:v", "3", "-pix_fmt", "yuv422p10le"},
		suffix: "prores422hq.mov",
	},
	{
		title:  "ProRes 4444 (10-bit + alpha, very large)",
		args:   []string{"-c:v", "prores_ks", "-profile:v", "4", "-pix_fmt", "yuva444p10le"},
		suffix: "prores4444.mov",
	},
	{
		title:  "H.264 preview (small, no alpha)",
		args:   []string{"-preset", "veryfast", "-c:v", "libx264", "-pix_fmt", "yuv420p", "-tune", "animation"},
		suffix: "preview.mp4",
	},
}

// Manifest renders the encoding commands shipped next to the frames. They
// are documentation only and never run.
func Manifest(prefix string, frameRate int) string {
	var lines []string
	for i, tpl := range encodeTemplates {
		if i > 0 {
			lines = append(lines, "")
		}
		cmdArgs := []string{
			"ffmpeg",
			"-framerate", fmt.Sprintf("%d", frameRate),
			"-i", prefix + "_%05d.png",
		}
		cmdArgs = append(cmdArgs, tpl.args...)
		cmdArgs = append(cmdArgs, prefix+"_"+tpl.suffix)

		lines = append(lines, "# "+tpl.title, strings.Join(cmdArgs, " "))
	}
	return strings.Join(lines, "\n") + "\n"
}
