package render

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/toftmakemore/makemoreV2/models"
)

const robollyBaseURL = "https://api.robolly.com"

// Request describes one asset render: a design template plus the vehicle
// field substitutions.
type Request struct {
	TenantID      string
	VehicleID     string
	TemplateID    string
	Format        string
	Modifications map[string]string
}

// SignedRenderLink builds the HMAC-signed render URL the service accepts
// without an Authorization header. Query parameters are sorted so the same
// request always signs identically.
func SignedRenderLink(apiKey string, req Request) string {
	format := req.Format
	if format == "" {
		format = "jpg"
	}
	path := fmt.Sprintf("/templates/%s/render.%s", req.TemplateID, format)

	keys := make([]string, 0, len(req.Modifications))
	for k := range req.Modifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	values.Set("scale", "1")
	for _, k := range keys {
		values.Set(k, req.Modifications[k])
	}

	query := values.Encode()
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(path + "?" + query))
	sig := hex.EncodeToString(mac.Sum(nil))

	return robollyBaseURL + path + "?" + query + "&sig=" + sig
}

// FormatVehicleData maps a vehicle onto template modification keys.
func FormatVehicleData(v *models.Vehicle) map[string]string {
	mods := map[string]string{
		"headline": v.DisplayName(),
		"price":    strconv.Itoa(v.PriceInt),
	}
	if len(v.Images) > 0 {
		mods["image"] = v.Images[0]
	}
	for _, key := range []string{"Make", "Model", "Year", "Mileage", "Fuel"} {
		if val, ok := v.Fields[key]; ok && val != "" {
			mods[key] = val
		}
	}
	return mods
}
