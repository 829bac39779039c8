package clipboard

import "time"

// uinput devices are not usable until udev has set them up.
const keyboardWarmup = 2 * time.Second
