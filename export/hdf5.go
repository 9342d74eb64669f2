package export

import (
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/sbinet/go-hdf5"

	"github.com/pthm-cable/abp2d/observables"
)

// RunParams are the run parameters recorded as attributes in the HDF5 file,
// one attribute per field.
type RunParams struct {
	Rho         float64
	Length      float64
	NParts      int64
	PotStrength float64
	Temperature float64
	RotDif      float64
	Activity    float64
	DT          float64
	NIters      int64
	NItersTh    int64
	Skip        int64
	Seed        int64
}

// WriteHDF5 writes the accumulated observables and the run parameters to a
// single HDF5 file: a "params" dataset carrying the parameters as attributes,
// the raw correlation histogram, and the internal-force statistics.
func WriteHDF5(path string, params RunParams, acc *observables.Accumulator) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := saveParams(file, params); err != nil {
		return err
	}
	if err := saveCorrels(file, acc); err != nil {
		return err
	}
	return saveForceStats(file, acc.Summary())
}

// saveParams creates a "params" dataset with a null dataspace whose
// attributes reflect the run parameters plus a timestamp.
func saveParams(file *hdf5.File, params RunParams) error {
	null, err := hdf5.CreateDataspace(hdf5.S_NULL)
	if err != nil {
		return err
	}

	anytype, err := hdf5.NewDatatypeFromValue(0)
	if err != nil {
		return err
	}
	defer anytype.Close()

	dset, err := file.CreateDataset("params", anytype, null)
	if err != nil {
		return err
	}
	defer dset.Close()

	scalar, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}

	stype, err := hdf5.NewDatatypeFromValue("")
	if err != nil {
		return err
	}
	defer stype.Close()

	attr, err := dset.CreateAttribute("Time", stype, scalar)
	if err != nil {
		return err
	}
	now := time.Now().String()
	if err := attr.Write(&now, stype); err != nil {
		attr.Close()
		return err
	}
	attr.Close()

	v := reflect.ValueOf(&params).Elem()
	for i := 0; i < v.NumField(); i++ {
		err := func() error {
			dtype, err := hdf5.NewDatatypeFromValue(v.Field(i).Interface())
			if err != nil {
				return err
			}
			defer dtype.Close()

			attr, err := dset.CreateAttribute(v.Type().Field(i).Name, dtype, scalar)
			if err != nil {
				return err
			}
			defer attr.Close()

			return attr.Write(v.Field(i).Addr().Interface(), dtype)
		}()
		if err != nil {
			return err
		}
	}

	return nil
}

// saveCorrels writes the raw correlation counts as an n-dimensional dataset.
func saveCorrels(file *hdf5.File, acc *observables.Accumulator) error {
	dims := acc.Dims()
	udims := make([]uint, len(dims))
	for i, d := range dims {
		udims[i] = uint(d)
	}

	dspace, err := hdf5.CreateSimpleDataspace(udims, nil)
	if err != nil {
		return err
	}

	dtype, err := hdf5.NewDatatypeFromValue(int64(0))
	if err != nil {
		return err
	}
	defer dtype.Close()

	dset, err := file.CreateDataset("correlations", dtype, dspace)
	if err != nil {
		return err
	}
	defer dset.Close()

	correls := acc.Correls()
	return dset.Write(&correls)
}

// saveForceStats writes the scalar internal-force statistics.
func saveForceStats(file *hdf5.File, sum observables.Summary) error {
	for _, s := range []struct {
		name string
		val  float64
	}{
		{"force_along_mean", sum.FAlongMean},
		{"force_along_msq", sum.FAlongMsq},
	} {
		err := func() error {
			scalar, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
			if err != nil {
				return err
			}

			dtype, err := hdf5.NewDatatypeFromValue(s.val)
			if err != nil {
				return err
			}
			defer dtype.Close()

			dset, err := file.CreateDataset(s.name, dtype, scalar)
			if err != nil {
				return err
			}
			defer dset.Close()

			v := s.val
			return dset.Write(&v)
		}()
		if err != nil {
			return err
		}
	}
	return nil
}
