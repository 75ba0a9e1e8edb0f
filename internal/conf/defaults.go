// defaults.go: viper defaults for all settings. Bucket names mirror the
// extraction pipeline's layout.
package conf

import (
	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("main.name", "diatom-annotator")
	v.SetDefault("main.debug", false)
	v.SetDefault("main.loglevel", "info")
	v.SetDefault("main.logfile", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("storage.credentialsfile", "")
	v.SetDefault("storage.buckets.papers", "papers-diatoms")
	v.SetDefault("storage.buckets.papersprocessed", "papers-diatoms-processed")
	v.SetDefault("storage.buckets.labelling", "papers-diatoms-labelling")
	v.SetDefault("storage.buckets.jsonfiles", "papers-diatoms-jsons")
	v.SetDefault("storage.buckets.extractedimages", "papers-extracted-images-bucket-mmm")
	v.SetDefault("storage.buckets.segmentation", "papers-diatoms-segmentation")

	v.SetDefault("session.id", "default-session")

	v.SetDefault("species.enabled", true)
	v.SetDefault("species.model", "gemini-2.0-flash")
	v.SetDefault("species.apikeyenv", "GEMINI_API_KEY")
	v.SetDefault("species.maxtokens", 8092)

	v.SetDefault("tracker.enabled", true)
	v.SetDefault("tracker.path", "uploads.db")

	v.SetDefault("reconciler.fallbackimagewidth", 1024)
	v.SetDefault("reconciler.fallbackimageheight", 768)
}
