package sshexec

import (
	"context"
	"fmt"
	"strings"

	"github.com/gpulab/gpulab/internal/volume"
)

// mountScriptTemplate expects the volume id (dashes stripped) as $1 and
// "format" or "keep" as $2. On Nitro instances the requested /dev/sdf
// never appears; the real device is the NVMe alias carrying the volume
// id, so resolution goes by-id first with the legacy names as fallback.
const mountScriptTemplate = `set -euo pipefail
VOL_ID="$1"
MODE="$2"

DEV=""
for attempt in $(seq 1 30); do
    for cand in /dev/disk/by-id/nvme-Amazon_Elastic_Block_Store_${VOL_ID} %s /dev/xvdf; do
        if [ -e "$cand" ]; then
            DEV="$cand"
            break 2
        fi
    done
    sleep 2
done
if [ -z "$DEV" ]; then
    echo "data volume device not found" >&2
    exit 1
fi

if [ "$MODE" = "format" ] && ! sudo blkid "$DEV" >/dev/null 2>&1; then
    sudo mkfs -t ext4 "$DEV"
fi

sudo mkdir -p %s
sudo mount "$DEV" %s

UUID=$(sudo blkid -s UUID -o value "$DEV")
if ! grep -q "UUID=$UUID" /etc/fstab; then
    echo "UUID=$UUID %s ext4 defaults,nofail 0 2" | sudo tee -a /etc/fstab >/dev/null
fi
sudo chown "$(id -un):$(id -gn)" %s
echo "mounted $DEV at %s"
`

// MountVolume formats (for fresh volumes) and mounts the attached data
// volume at the standard mount point, and persists it in fstab.
// Existing volumes are mounted as-is; their filesystem is never touched.
func MountVolume(ctx context.Context, r Runner, volumeID string, format bool) error {
	mode := "keep"
	if format {
		mode = "format"
	}
	script := fmt.Sprintf(mountScriptTemplate,
		volume.DeviceName,
		volume.MountPoint, volume.MountPoint, volume.MountPoint, volume.MountPoint, volume.MountPoint)
	_, err := r.RunScript(ctx, script, strings.ReplaceAll(volumeID, "-", ""), mode)
	return err
}
