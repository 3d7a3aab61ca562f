package staging

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pgerun/internal/product"
)

func TestObjectName_JoinsPrefixAndBaseName(t *testing.T) {
	t.Parallel()

	u := &Uploader{opts: Options{Bucket: "products", Prefix: "dswx_hls/2026"}}
	require.Equal(t, "dswx_hls/2026/OPERA_L3_T1_WTR.tif", u.objectName("/data/output/OPERA_L3_T1_WTR.tif"))

	u = &Uploader{opts: Options{Bucket: "products"}}
	require.Equal(t, "OPERA_L3_T1_WTR.tif", u.objectName("/data/output/OPERA_L3_T1_WTR.tif"))
}

func TestContentType(t *testing.T) {
	t.Parallel()

	require.Equal(t, "image/tiff", contentType(product.FormatGeoTIFF))
	require.Equal(t, "application/x-hdf5", contentType(product.FormatHDF5))
	require.Equal(t, "application/x-netcdf", contentType(product.FormatNetCDF))
	require.Equal(t, "image/png", contentType(product.FormatPNG))
	require.Equal(t, "application/octet-stream", contentType(product.FormatUnknown))
}

func TestNew_BuildsClient(t *testing.T) {
	t.Parallel()

	u, err := New(Options{Endpoint: "staging.example.com:9000", Bucket: "products", UseSSL: true})
	require.NoError(t, err)
	require.NotNil(t, u.client)
}
