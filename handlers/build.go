package handlers

import "video-site/config"

type BuildInfo struct {
	BuildDate    string `json:"buildDate"`
	BuildId      string `json:"buildId"`
	BuildIdShort string `json:"buildIdShort"`
}

func MakeBuildInfo() BuildInfo {
	sha := config.GetGitSHA()
	short := sha
	if len(short) > 7 {
		short = short[0:7]
	}
	return BuildInfo{
		BuildDate:    config.GetBuildDate(),
		BuildId:      sha,
		BuildIdShort: short,
	}
}
