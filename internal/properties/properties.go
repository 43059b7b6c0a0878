package properties

import "os"

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func RasterAPIURL() string {
	return os.Getenv("RASTER_API_URL")
}

func RasterClientID() string {
	return os.Getenv("RASTER_CLIENT_ID")
}

func RasterClientSecret() string {
	return os.Getenv("RASTER_CLIENT_SECRET")
}

func RasterTokenURL() string {
	return os.Getenv("RASTER_TOKEN_URL")
}

func SiloBaseURL() string {
	if url := os.Getenv("SILO_BASE_URL"); url != "" {
		return url
	}
	return "https://www.longpaddock.qld.gov.au/cgi-bin/silo"
}

func SiloUsername() string {
	return os.Getenv("SILO_USERNAME")
}

func SlgaBaseURL() string {
	return os.Getenv("SLGA_BASE_URL")
}

func SofBaseURL() string {
	if url := os.Getenv("SOF_BASE_URL"); url != "" {
		return url
	}
	return "https://data.tern.org.au/model-derived/slga/NationalMaps/SoilAndLandscapeGrid/SOF/v1"
}

func WebhookSuccessURL() string {
	return os.Getenv("WEBHOOK_SUCCESS_URL")
}

func WebhookErrorURL() string {
	return os.Getenv("WEBHOOK_ERROR_URL")
}
